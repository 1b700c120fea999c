package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/bizaudit/internal/common"
	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/services/generator"
	"github.com/ternarybob/bizaudit/internal/services/llm"
	"github.com/ternarybob/bizaudit/internal/services/report"
)

var (
	auditRequest models.AuditRequest
	auditFormat  string
	auditOutput  string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Generate one audit report and print it",
	Long: `Generates a single audit report without starting the server or storing a record.
Progress is written to stderr; the report is written to stdout or --output.`,
	Example: `  bizaudit audit --name "Acme Bakery" --domain food --location "Austin, TX" \
    --description "Neighbourhood bakery selling sourdough and pastries" --format markdown`,
	RunE: runAudit,
}

func init() {
	flags := auditCmd.Flags()
	flags.StringVar(&auditRequest.BusinessName, "name", "", "Business name")
	flags.StringVar(&auditRequest.BusinessDomain, "domain", "", "Business domain or industry")
	flags.StringVar(&auditRequest.BusinessLocation, "location", "", "Business location")
	flags.StringVar(&auditRequest.Description, "description", "", "Short business description")
	flags.StringVarP(&auditFormat, "format", "f", "json", "Output format: json or markdown")
	flags.StringVarP(&auditOutput, "output", "o", "", "Write the report to this file instead of stdout")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditFormat != "json" && auditFormat != "markdown" {
		return fmt.Errorf("unknown format %q (use json or markdown)", auditFormat)
	}

	req := auditRequest.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers := llm.NewProviderFactory(llm.Config{
		Gemini: config.Gemini,
		Claude: config.Claude,
		LLM:    config.LLM,
	}, logger, nil)
	defer providers.Close()

	gen, err := generator.NewGenerator(providers, generator.Config{
		Temperature:  config.Generation.ReportTemperature,
		MaxAttempts:  config.Generation.MaxAttempts,
		BackoffUnit:  config.Generation.BackoffUnitDuration(),
		Pace:         config.Generation.PaceDuration(),
		TemplatesDir: config.Templates.Dir,
	}, logger, nil)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	raw, err := gen.Generate(ctx, req, func(fraction float64) {
		fmt.Fprintf(stderr, "\rGenerating audit for %s... %3.0f%%", req.BusinessName, fraction*100)
	})
	fmt.Fprintln(stderr)
	if err != nil {
		if generator.IsContentPolicyRefusal(err) {
			return fmt.Errorf("the model declined to produce this audit: %w", err)
		}
		return err
	}

	out, err := renderAudit(req, raw, auditFormat)
	if err != nil {
		return err
	}

	if auditOutput != "" {
		if err := os.WriteFile(auditOutput, out, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info().Str("path", auditOutput).Msg("Report written")
		return nil
	}
	_, err = io.Copy(cmd.OutOrStdout(), bytes.NewReader(out))
	return err
}

// renderAudit formats a validated report as indented JSON or Markdown
func renderAudit(req models.AuditRequest, raw json.RawMessage, format string) ([]byte, error) {
	if format == "json" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return nil, fmt.Errorf("failed to format report: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}

	record := models.NewAuditRecord(common.NewAuditID(), req, time.Now())
	record.Progress = models.ProgressCompleted
	record.Report = raw

	dashboard, err := report.BuildDashboard(record)
	if err != nil {
		return nil, err
	}
	return []byte(report.Markdown(dashboard)), nil
}

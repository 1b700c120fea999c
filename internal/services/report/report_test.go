package report

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/bizaudit/internal/models"
)

func loadRecord(t *testing.T) *models.AuditRecord {
	t.Helper()
	data, err := os.ReadFile("testdata/report.json")
	require.NoError(t, err)

	var compact bytes.Buffer
	require.NoError(t, json.Compact(&compact, data))

	r := models.NewAuditRecord("audit_test", models.AuditRequest{
		BusinessName:     "harbour Coffee Roasters",
		BusinessDomain:   "Specialty coffee",
		BusinessLocation: "Hobart, Tasmania",
		Description:      "Small batch roaster",
	}, time.Now())
	models.CompletedUpdate(compact.Bytes()).Apply(r, time.Now())
	return r
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"$2.4M", 2.4, true},
		{"38%", 38, true},
		{"$1,200,000", 1200000, true},
		{"90", 90, true},
		{"n/a", 0, false},
		{"", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Harbour Coffee Report", Title("harbour Coffee"))
	assert.Equal(t, "Éclair Co Report", Title("éclair Co"))
	assert.Equal(t, "Audit Report", Title("  "))
}

func TestBuildDashboard(t *testing.T) {
	d, err := BuildDashboard(loadRecord(t))
	require.NoError(t, err)

	assert.Equal(t, "Harbour Coffee Roasters Report", d.Title)
	assert.Equal(t, []string{"Traceability", "Craft", "Community"}, d.CoreValues)

	require.Len(t, d.FinancialMetrics, 3)
	assert.Equal(t, Point{Label: "Annual revenue", Value: 2.4, Raw: "$2.4M", Valid: true}, d.FinancialMetrics[0])
	assert.False(t, d.FinancialMetrics[2].Valid)

	require.Len(t, d.RevenueShare, 3)
	assert.Equal(t, 65.0, d.RevenueShare[0].Value)
	assert.False(t, d.RevenueShare[2].Valid)

	require.Len(t, d.EmergingTrends, 2)
	assert.Equal(t, 80.0, d.EmergingTrends[0].Value, "numeric impacts are accepted")
	assert.Equal(t, 90.0, d.EmergingTrends[1].Value)

	assert.Equal(t, []string{"Online subscriptions"}, d.Swot.Opportunities)
	assert.Equal(t, "Southern Cross Roasters", d.Competitors[0].Name)
	assert.Equal(t, "82%", d.RetentionRate)
	assert.Len(t, d.Sources, 2)
}

func TestBuildDashboardWithoutReport(t *testing.T) {
	r := models.NewAuditRecord("audit_x", models.AuditRequest{BusinessName: "x"}, time.Now())
	_, err := BuildDashboard(r)
	assert.Error(t, err)
}

func TestMarkdown(t *testing.T) {
	d, err := BuildDashboard(loadRecord(t))
	require.NoError(t, err)

	md := Markdown(d)
	assert.True(t, strings.HasPrefix(md, "# Harbour Coffee Roasters Report\n"))
	for _, section := range []string{
		"## Business Overview", "## Financial Health", "## Regional Analysis",
		"## SWOT Analysis", "## Opportunity Analysis", "## Customer Base Analysis",
		"## Market Trend Analysis", "## Recommendations", "## Sources",
	} {
		assert.Contains(t, md, section)
	}
	assert.Contains(t, md, "| Annual revenue | $2.4M |")
	assert.Contains(t, md, `Single roaster | capacity limit`, "list items keep pipes")
	assert.Contains(t, md, "- [Australian Coffee Market Report](https://example.com/coffee)")
	assert.Contains(t, md, "- Owner interview")
}

func TestMarkdownEscapesPipesInTables(t *testing.T) {
	d := &Dashboard{Title: "T", FinancialMetrics: []Point{{Label: "a|b", Raw: "1"}}}
	assert.Contains(t, Markdown(d), `| a\|b | 1 |`)
}

func TestHTML(t *testing.T) {
	d, err := BuildDashboard(loadRecord(t))
	require.NoError(t, err)

	out, err := HTML(d)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Harbour Coffee Roasters Report</title>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>$2.4M</td>")
	assert.NotContains(t, html, "<options>", "model text is escaped")
}

func TestPDF(t *testing.T) {
	d, err := BuildDashboard(loadRecord(t))
	require.NoError(t, err)

	out, err := PDF(d)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 1000)
}

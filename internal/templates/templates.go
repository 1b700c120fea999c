// Package templates provides embedded TOML prompt templates with user override support.
// Templates are loaded with resolution order:
// 1. User override: templatesDir/{name}.toml
// 2. Embedded default: internal/templates/{name}.toml
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/bizaudit/internal/models"
)

//go:embed *.toml
var fs embed.FS

// Template names
const (
	NameAudit = "audit"
	NameFacts = "facts"
)

// TemplateType defines the type of template
type TemplateType string

const (
	// TemplateTypePrompt is a single-turn prompt
	TemplateTypePrompt TemplateType = "prompt"
)

// Template represents a loaded template
type Template struct {
	Type        TemplateType `toml:"type"`
	Name        string       `toml:"name"`
	Description string       `toml:"description"`
	Temperature float32      `toml:"temperature"`
	Prompt      string       `toml:"prompt"`
}

// GetTemplate loads a template by name with resolution order:
// 1. User override: templatesDir/{name}.toml
// 2. Embedded default: internal/templates/{name}.toml
func GetTemplate(name string, templatesDir string) (*Template, error) {
	if templatesDir != "" {
		userPath := filepath.Join(templatesDir, name+".toml")
		if data, err := os.ReadFile(userPath); err == nil {
			return parseTemplate(data)
		}
	}

	data, err := fs.ReadFile(name + ".toml")
	if err != nil {
		return nil, fmt.Errorf("template '%s' not found (checked user override and embedded)", name)
	}
	return parseTemplate(data)
}

// ListEmbeddedTemplates returns names of all embedded templates
func ListEmbeddedTemplates() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".toml") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".toml"))
		}
	}
	return names, nil
}

func parseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if strings.TrimSpace(t.Prompt) == "" {
		return nil, fmt.Errorf("template has no prompt")
	}
	return &t, nil
}

type auditVars struct {
	models.AuditRequest
	Schema string
}

type factsVars struct {
	models.AuditRequest
	Count int
}

// RenderAudit renders the report prompt with the business inputs and the serialised schema
func RenderAudit(t *Template, req models.AuditRequest, schemaJSON string) (string, error) {
	return render(t, auditVars{AuditRequest: req, Schema: schemaJSON})
}

// RenderFacts renders the loader facts prompt
func RenderFacts(t *Template, req models.AuditRequest, count int) (string, error) {
	return render(t, factsVars{AuditRequest: req, Count: count})
}

func render(t *Template, data any) (string, error) {
	if t == nil {
		return "", fmt.Errorf("nil template")
	}
	tmpl, err := template.New(t.Name).Option("missingkey=error").Parse(t.Prompt)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template %s: %w", t.Name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template %s: %w", t.Name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

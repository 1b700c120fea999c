package generator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/metrics"
	"github.com/ternarybob/bizaudit/internal/schema"
	"github.com/ternarybob/bizaudit/internal/services/llm"
)

func newTestGenerator(t *testing.T, provider ContentGenerator, m *metrics.Metrics) (*Generator, *sleepRecorder) {
	t.Helper()
	g, err := NewGenerator(provider, Config{
		MaxAttempts: 3,
		BackoffUnit: time.Second,
		Pace:        500 * time.Millisecond,
	}, arbor.NewLogger(), m)
	require.NoError(t, err)

	rec := &sleepRecorder{}
	g.WithSleeper(rec.Sleep)
	return g, rec
}

func TestGeneratePromptCarriesInputsAndSchema(t *testing.T) {
	g, _ := newTestGenerator(t, &scriptedProvider{}, nil)

	prompt, err := g.Prompt(testRequest())
	require.NoError(t, err)
	assert.Contains(t, prompt, "Harbour Coffee Roasters")
	assert.Contains(t, prompt, "Specialty coffee")
	assert.Contains(t, prompt, "Hobart, Tasmania")
	assert.Contains(t, prompt, "Small batch roaster")
	for _, key := range schema.AuditReport().Keys() {
		assert.Contains(t, prompt, `"`+key+`"`)
	}
}

func TestGenerateSuccess(t *testing.T) {
	provider := &scriptedProvider{replies: []reply{{text: "```json\n" + validReportJSON() + "\n```"}}}
	g, rec := newTestGenerator(t, provider, nil)

	var progress []float64
	report, err := g.Generate(context.Background(), testRequest(), func(f float64) {
		progress = append(progress, f)
	})
	require.NoError(t, err)
	assert.True(t, json.Valid(report))
	assert.Equal(t, 1, provider.calls())

	n := len(schema.AuditReport().Keys())
	require.Len(t, progress, n)
	assert.Equal(t, 1.0, progress[n-1])
	assert.Len(t, rec.durations(), n, "one pace wait per section")

	req := provider.requests[0]
	assert.True(t, req.JSONOutput)
	assert.Equal(t, float32(0.5), req.Temperature)
}

func TestGenerateRetriesMalformedAndIncomplete(t *testing.T) {
	var incomplete map[string]any
	require.NoError(t, json.Unmarshal([]byte(validReportJSON()), &incomplete))
	delete(incomplete, schema.SectionSources)
	incompleteJSON, err := json.Marshal(incomplete)
	require.NoError(t, err)

	m := metrics.New()
	provider := &scriptedProvider{replies: []reply{
		{text: "Sorry, here is the report: {"},
		{text: string(incompleteJSON)},
		{text: validReportJSON()},
	}}
	g, rec := newTestGenerator(t, provider, m)

	report, err := g.Generate(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, report)
	assert.Equal(t, 3, provider.calls())

	waits := rec.durations()
	require.GreaterOrEqual(t, len(waits), 2)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits[:2])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("parse_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("schema_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("success")))
}

func TestGenerateContentPolicyExhaustion(t *testing.T) {
	provider := &scriptedProvider{replies: []reply{
		{err: &llm.RefusalError{Provider: llm.ProviderGemini, Reason: llm.ReasonRecitation}},
	}}
	g, rec := newTestGenerator(t, provider, nil)

	called := false
	report, err := g.Generate(context.Background(), testRequest(), func(float64) { called = true })
	assert.Nil(t, report)
	assert.False(t, called)
	assert.Equal(t, 3, provider.calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.durations())

	var policy *ContentPolicyError
	require.True(t, errors.As(err, &policy))
	var refusal *llm.RefusalError
	assert.True(t, errors.As(err, &refusal))
}

func TestGenerateExhaustion(t *testing.T) {
	provider := &scriptedProvider{replies: []reply{{err: errors.New("gemini API call failed: 503")}}}
	g, _ := newTestGenerator(t, provider, nil)

	_, err := g.Generate(context.Background(), testRequest(), nil)
	var exhausted *GenerationExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, provider.calls())
}

func TestGenerateProgressCountsExtraKeys(t *testing.T) {
	var value map[string]any
	require.NoError(t, json.Unmarshal([]byte(validReportJSON()), &value))
	value["analystNotes"] = "extra"
	data, err := json.Marshal(value)
	require.NoError(t, err)

	provider := &scriptedProvider{replies: []reply{{text: string(data)}}}
	g, _ := newTestGenerator(t, provider, nil)

	var progress []float64
	_, err = g.Generate(context.Background(), testRequest(), func(f float64) {
		progress = append(progress, f)
	})
	require.NoError(t, err)
	assert.Len(t, progress, len(schema.AuditReport().Keys())+1)
}

func TestGenerateUsesConfiguredTemperatureAndModel(t *testing.T) {
	provider := &scriptedProvider{replies: []reply{{text: validReportJSON()}}}
	g, err := NewGenerator(provider, Config{
		Model:       "gemini-2.0-flash",
		Temperature: 0.2,
		MaxAttempts: 1,
	}, arbor.NewLogger(), nil)
	require.NoError(t, err)
	g.WithSleeper((&sleepRecorder{}).Sleep)

	_, err = g.Generate(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0.2), provider.requests[0].Temperature)
	assert.Equal(t, "gemini-2.0-flash", provider.requests[0].Model)
}

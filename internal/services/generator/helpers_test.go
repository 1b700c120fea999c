package generator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/schema"
	"github.com/ternarybob/bizaudit/internal/services/llm"
)

// scriptedProvider replays a fixed sequence of replies, one per call
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []reply
	requests []*llm.ContentRequest
}

type reply struct {
	text string
	err  error
}

func (p *scriptedProvider) GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, request)
	if len(p.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	r := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llm.ContentResponse{Text: r.text, Provider: llm.ProviderGemini}, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// sleepRecorder records requested durations without waiting
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// sampleValue builds a value that satisfies node, with every leaf set to
// fill and one element per sequence
func sampleValue(node *schema.Node, fill any) any {
	switch node.Kind {
	case schema.KindObject:
		obj := make(map[string]any, len(node.Fields))
		for _, f := range node.Fields {
			obj[f.Name] = sampleValue(f.Node, fill)
		}
		return obj
	case schema.KindSequence:
		return []any{sampleValue(node.Elem, fill)}
	default:
		return fill
	}
}

func validReportJSON() string {
	data, err := json.Marshal(sampleValue(schema.AuditReport(), "x"))
	if err != nil {
		panic(err)
	}
	return string(data)
}

func testRequest() models.AuditRequest {
	return models.AuditRequest{
		BusinessName:     "Harbour Coffee Roasters",
		BusinessDomain:   "Specialty coffee",
		BusinessLocation: "Hobart, Tasmania",
		Description:      "Small batch roaster supplying cafes and retail customers.",
	}
}

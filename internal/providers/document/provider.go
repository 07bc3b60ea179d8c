// Package document implements the document parsing provider: field
// extraction from plain-text label documents.
package document

import (
	"context"
	"errors"
	"strings"

	"github.com/vitralabs/maestro/pkg/protocol"
)

const CapabilityParse = "parse-document"

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) ID() string      { return "document-parser" }
func (p *Provider) Name() string    { return "Document Parser" }
func (p *Provider) Version() string { return "1.0.3" }

func (p *Provider) Capabilities() []protocol.Capability {
	return []protocol.Capability{
		{
			Name:        CapabilityParse,
			Description: "Extract key/value fields from a plain-text document",
			Input:       `{"document": "name: Choco Bar\ningredients: milk, sugar"}`,
			Output:      `{"fields": {...}, "lines": n}`,
		},
	}
}

func (p *Provider) Process(_ context.Context, input map[string]any) (map[string]any, error) {
	text, ok := input["document"].(string)
	if !ok || text == "" {
		return nil, errors.New("input field 'document' must be a non-empty string")
	}

	lines := strings.Split(text, "\n")
	fields := make(map[string]any)

	for _, line := range lines {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}

		fields[key] = strings.TrimSpace(value)
	}

	return map[string]any{
		"fields": fields,
		"lines":  len(lines),
	}, nil
}

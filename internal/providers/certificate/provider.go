// Package certificate implements the certificate document provider. It also
// exercises the optional provider hooks: health check, shutdown and metrics.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vitralabs/maestro/pkg/protocol"
)

const CapabilityGenerate = "generate-document"

type Provider struct {
	issued   atomic.Int64
	shutdown atomic.Bool
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) ID() string      { return "certificate-generator" }
func (p *Provider) Name() string    { return "Certificate Generator" }
func (p *Provider) Version() string { return "2.1.0" }

func (p *Provider) Capabilities() []protocol.Capability {
	return []protocol.Capability{
		{
			Name:        CapabilityGenerate,
			Description: "Render a certificate document for a product",
			Input:       `{"holder": "...", "product": "...", "fields": {...}}`,
			Output:      `{"certificate_id": "...", "serial": "...", "issued_at": "...", "content": "..."}`,
		},
	}
}

func (p *Provider) Process(_ context.Context, input map[string]any) (map[string]any, error) {
	if p.shutdown.Load() {
		return nil, errors.New("certificate generator is shut down")
	}

	holder, ok := input["holder"].(string)
	if !ok || holder == "" {
		return nil, errors.New("input field 'holder' must be a non-empty string")
	}

	product, _ := input["product"].(string)
	issuedAt := time.Now().UTC()
	serial := p.issued.Add(1)

	content := fmt.Sprintf("Certificate of Conformity\nHolder: %s\nProduct: %s\nIssued: %s",
		holder, product, issuedAt.Format(time.RFC3339))

	return map[string]any{
		"certificate_id": uuid.New().String(),
		"serial":         fmt.Sprintf("CERT-%06d", serial),
		"issued_at":      issuedAt.Format(time.RFC3339),
		"content":        content,
	}, nil
}

func (p *Provider) HealthCheck(_ context.Context) error {
	if p.shutdown.Load() {
		return errors.New("provider has been shut down")
	}

	return nil
}

func (p *Provider) Shutdown(_ context.Context) error {
	p.shutdown.Store(true)

	return nil
}

func (p *Provider) Metrics() map[string]any {
	return map[string]any{
		"certificates_issued": p.issued.Load(),
	}
}

package metrics

import (
	"context"
	"time"

	"github.com/clintrovert/sarek/internal/provider"
)

// WrapProvider instruments a provider so every completion is counted and
// timed.
func (m *Metrics) WrapProvider(p provider.Provider) provider.Provider {
	return &instrumentedProvider{inner: p, metrics: m}
}

type instrumentedProvider struct {
	inner   provider.Provider
	metrics *Metrics
}

func (p *instrumentedProvider) Name() string { return p.inner.Name() }

func (p *instrumentedProvider) Complete(ctx context.Context, req provider.Request) (string, error) {
	start := time.Now()
	raw, err := p.inner.Complete(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.ObserveProviderCall(p.inner.Name(), outcome, time.Since(start))
	return raw, err
}

package connection

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultProbeURL = "https://api.deepgram.com/v1/projects"

// Prober periodically measures reachability and request latency against the
// realtime service and feeds the outcomes into a Monitor.
type Prober struct {
	monitor  *Monitor
	client   *http.Client
	probeURL string
	interval time.Duration
}

type ProberOption func(*Prober)

func WithProbeURL(url string) ProberOption {
	return func(p *Prober) { p.probeURL = url }
}

func WithProbeInterval(interval time.Duration) ProberOption {
	return func(p *Prober) { p.interval = interval }
}

func NewProber(monitor *Monitor, opts ...ProberOption) *Prober {
	p := &Prober{
		monitor: monitor,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   5 * time.Second,
		},
		probeURL: defaultProbeURL,
		interval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run probes until the context is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.probeURL, nil)
	if err != nil {
		return
	}

	started := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.monitor.RecordError()
		p.monitor.SetPathStatus(false, InterfaceUnknown)
		return
	}
	defer resp.Body.Close()

	p.monitor.SetPathStatus(true, p.monitor.interfaceKindSnapshot())
	if resp.StatusCode >= http.StatusInternalServerError {
		p.monitor.RecordError()
		return
	}
	p.monitor.RecordSuccess(time.Since(started))
}

func (m *Monitor) interfaceKindSnapshot() InterfaceKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interfaceKind
}

package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/circuit"
)

// BreakerProvisioner wraps a Provisioner with a circuit breaker. When the
// upstream fails repeatedly the breaker opens and calls fail fast with
// provisioning_failed instead of stacking up slow upstream timeouts. While
// open, one probe call per cooldown interval is let through so the breaker
// can close again without manual intervention.
type BreakerProvisioner struct {
	upstream Provisioner
	breaker  *circuit.Breaker
	logger   *slog.Logger

	mu        sync.Mutex
	cooldown  time.Duration
	lastProbe time.Time
}

type BreakerOption func(*BreakerProvisioner)

func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(p *BreakerProvisioner) { p.logger = logger }
}

// WithProbeCooldown sets how long the breaker stays fully closed to traffic
// before allowing a probe call.
func WithProbeCooldown(d time.Duration) BreakerOption {
	return func(p *BreakerProvisioner) {
		if d > 0 {
			p.cooldown = d
		}
	}
}

// NewBreakerProvisioner wraps upstream with the given breaker.
func NewBreakerProvisioner(upstream Provisioner, breaker *circuit.Breaker, opts ...BreakerOption) *BreakerProvisioner {
	p := &BreakerProvisioner{
		upstream: upstream,
		breaker:  breaker,
		cooldown: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *BreakerProvisioner) CreateAccount(ctx context.Context, name, email string) (id.IdentityID, error) {
	if !p.allow() {
		return id.IdentityID{}, dErrors.New(dErrors.CodeProvisioningFailed, "identity provider is unavailable")
	}
	identityID, err := p.upstream.CreateAccount(ctx, name, email)
	p.record(ctx, err)
	if err != nil {
		return id.IdentityID{}, dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to create jury account")
	}
	return identityID, nil
}

func (p *BreakerProvisioner) DisableAccount(ctx context.Context, identityID id.IdentityID) error {
	if !p.allow() {
		return dErrors.New(dErrors.CodeProvisioningFailed, "identity provider is unavailable")
	}
	err := p.upstream.DisableAccount(ctx, identityID)
	p.record(ctx, err)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to disable jury account")
	}
	return nil
}

// allow reports whether a call may go upstream: always when closed, one probe
// per cooldown when open.
func (p *BreakerProvisioner) allow() bool {
	if !p.breaker.IsOpen() {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.lastProbe) < p.cooldown {
		return false
	}
	p.lastProbe = time.Now()
	return true
}

func (p *BreakerProvisioner) record(ctx context.Context, err error) {
	if err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened && p.logger != nil {
			p.logger.WarnContext(ctx, "identity provisioning breaker opened", "breaker", p.breaker.Name())
		}
		return
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed && p.logger != nil {
		p.logger.InfoContext(ctx, "identity provisioning breaker closed", "breaker", p.breaker.Name())
	}
}

package identity

import (
	"context"
	"fmt"
	"sync"

	id "hackgate/pkg/domain"
)

// InMemoryProvisioner backs the provisioner port for development and tests.
// Failure injection lets tests exercise the finalize rollback and the circuit
// breaker without a real upstream.
type InMemoryProvisioner struct {
	mu       sync.Mutex
	accounts map[id.IdentityID]Account
	byEmail  map[string]id.IdentityID
	disabled map[id.IdentityID]bool

	failEmails map[string]bool
	failAll    bool

	createCalls  int
	disableCalls int
}

func NewInMemoryProvisioner() *InMemoryProvisioner {
	return &InMemoryProvisioner{
		accounts:   make(map[id.IdentityID]Account),
		byEmail:    make(map[string]id.IdentityID),
		disabled:   make(map[id.IdentityID]bool),
		failEmails: make(map[string]bool),
	}
}

// FailFor makes CreateAccount fail for one email address.
func (p *InMemoryProvisioner) FailFor(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failEmails[email] = true
}

// FailAll toggles failure of every provisioning call.
func (p *InMemoryProvisioner) FailAll(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAll = fail
}

func (p *InMemoryProvisioner) CreateAccount(_ context.Context, name, email string) (id.IdentityID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++

	if p.failAll || p.failEmails[email] {
		return id.IdentityID{}, fmt.Errorf("upstream rejected account for %s", email)
	}
	if existing, ok := p.byEmail[email]; ok && !p.disabled[existing] {
		return existing, nil
	}

	identityID := id.NewIdentityID()
	p.accounts[identityID] = Account{ID: identityID, Name: name, Email: email}
	p.byEmail[email] = identityID
	return identityID, nil
}

func (p *InMemoryProvisioner) DisableAccount(_ context.Context, identityID id.IdentityID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableCalls++

	if p.failAll {
		return fmt.Errorf("upstream rejected disable for %s", identityID)
	}
	if _, ok := p.accounts[identityID]; !ok {
		return fmt.Errorf("identity %s does not exist", identityID)
	}
	p.disabled[identityID] = true
	return nil
}

// Active reports whether an account exists and has not been disabled.
func (p *InMemoryProvisioner) Active(identityID id.IdentityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.accounts[identityID]
	return ok && !p.disabled[identityID]
}

// CreateCalls counts CreateAccount invocations, for idempotence assertions.
func (p *InMemoryProvisioner) CreateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

// DisableCalls counts DisableAccount invocations.
func (p *InMemoryProvisioner) DisableCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disableCalls
}

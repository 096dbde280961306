package list

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/unclebandit/mailinglist/internal/model"
)

type memoryMember struct {
	info         map[string]string
	unsubscribed bool
	welcomed     bool
}

// MemoryProvider keeps the list in process memory. It backs local
// development and tests.
type MemoryProvider struct {
	mu        sync.Mutex
	available bool
	members   map[string]*memoryMember
	campaigns map[string]*model.CampaignContent
	failures  map[string]error
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		available: true,
		members:   make(map[string]*memoryMember),
		campaigns: make(map[string]*model.CampaignContent),
		failures:  make(map[string]error),
	}
}

func (p *MemoryProvider) SetAvailable(available bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = available
}

// FailOn makes every mutation for address return err.
func (p *MemoryProvider) FailOn(address string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[key(address)] = err
}

// Member returns the stored info for address and whether it is unsubscribed.
func (p *MemoryProvider) Member(address string) (info map[string]string, unsubscribed bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[key(address)]
	if !ok {
		return nil, false, false
	}
	return maps.Clone(m.info), m.unsubscribed, true
}

func (p *MemoryProvider) Campaign(shortname string) (*model.CampaignContent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.campaigns[shortname]
	return c, ok
}

func (p *MemoryProvider) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.available {
		return ErrProviderUnavailable
	}
	return nil
}

func (p *MemoryProvider) IsMember(_ context.Context, address string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[key(address)]
	return ok && !m.unsubscribed, nil
}

func (p *MemoryProvider) Subscribe(_ context.Context, sub model.Subscriber, sendWelcome bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[key(sub.Address)]; err != nil {
		return err
	}

	m, ok := p.members[key(sub.Address)]
	if !ok {
		m = &memoryMember{info: map[string]string{}}
		p.members[key(sub.Address)] = m
	}
	maps.Copy(m.info, sub.Info)
	m.unsubscribed = false
	m.welcomed = m.welcomed || sendWelcome
	return nil
}

func (p *MemoryProvider) Unsubscribe(_ context.Context, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[key(address)]; err != nil {
		return err
	}

	m, ok := p.members[key(address)]
	switch {
	case !ok:
		return ErrNotMember
	case m.unsubscribed:
		return ErrAlreadyUnsubscribed
	}
	m.unsubscribed = true
	return nil
}

func (p *MemoryProvider) Update(_ context.Context, sub model.Subscriber) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[key(sub.Address)]; err != nil {
		return err
	}

	m, ok := p.members[key(sub.Address)]
	if !ok {
		return ErrNotMember
	}
	maps.Copy(m.info, sub.Info)
	return nil
}

func (p *MemoryProvider) SaveCampaign(_ context.Context, content *model.CampaignContent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.campaigns[content.Shortname] = content
	return nil
}

func (p *MemoryProvider) DeleteCampaign(_ context.Context, shortname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.campaigns, shortname)
	return nil
}

func key(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

var _ Provider = (*MemoryProvider)(nil)

// Package list mediates list operations between the application and a
// mailing-list provider, queueing mutations while the provider is down.
package list

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/badoux/checkmail"

	"github.com/unclebandit/mailinglist/internal/model"
)

var (
	ErrProviderUnavailable = errors.New("list: provider unavailable")
	ErrNotMember           = errors.New("list: address is not a member")
	ErrAlreadyUnsubscribed = errors.New("list: address already unsubscribed")
)

// Gateway is the list-operation surface used by callers. Mutations never
// return errors; the outcome is carried by the ResultCode.
type Gateway interface {
	Shortname() string
	IsAvailable(ctx context.Context) bool
	IsMember(ctx context.Context, address string) (bool, error)

	Subscribe(ctx context.Context, address string, info map[string]string, sendWelcome bool, fields model.FieldMap) model.ResultCode
	BatchSubscribe(ctx context.Context, subscribers []model.Subscriber, sendWelcome bool, fields model.FieldMap) model.ResultCode
	Unsubscribe(ctx context.Context, address string) model.ResultCode
	BatchUnsubscribe(ctx context.Context, addresses []string) model.ResultCode
	Update(ctx context.Context, address string, info map[string]string, fields model.FieldMap) model.ResultCode
	BatchUpdate(ctx context.Context, subscribers []model.Subscriber, fields model.FieldMap) model.ResultCode

	SaveCampaign(ctx context.Context, content *model.CampaignContent) error
	DeleteCampaign(ctx context.Context, shortname string) error
}

// Provider is a concrete mailing-list service.
//
// Unsubscribe and Update report ErrNotMember for unknown addresses and
// Unsubscribe reports ErrAlreadyUnsubscribed for removed ones. Any other
// error is treated as an unclassified failure.
type Provider interface {
	Ping(ctx context.Context) error
	IsMember(ctx context.Context, address string) (bool, error)
	Subscribe(ctx context.Context, sub model.Subscriber, sendWelcome bool) error
	Unsubscribe(ctx context.Context, address string) error
	Update(ctx context.Context, sub model.Subscriber) error
	SaveCampaign(ctx context.Context, content *model.CampaignContent) error
	DeleteCampaign(ctx context.Context, shortname string) error
}

// QueueStore records mutations for later replay.
type QueueStore interface {
	EnqueueSubscribe(ctx context.Context, address string, info map[string]string, sendWelcome bool, tenantID int64) (model.ResultCode, error)
	EnqueueBatchSubscribe(ctx context.Context, subscribers []model.Subscriber, sendWelcome bool, tenantID int64) (model.ResultCode, error)
	EnqueueUnsubscribe(ctx context.Context, address string, tenantID int64) (model.ResultCode, error)
	EnqueueBatchUnsubscribe(ctx context.Context, addresses []string, tenantID int64) (model.ResultCode, error)
	EnqueueUpdate(ctx context.Context, address string, info map[string]string, tenantID int64) (model.ResultCode, error)
	EnqueueBatchUpdate(ctx context.Context, subscribers []model.Subscriber, tenantID int64) (model.ResultCode, error)
}

// Notifier is told when new entries were queued for a tenant.
type Notifier interface {
	Notify(ctx context.Context, n model.QueueNotification) error
}

// Config identifies the list a gateway serves.
type Config struct {
	Shortname       string
	TenantID        int64
	AvailabilityTTL time.Duration
}

type Option func(*FallbackGateway)

func WithNotifier(n Notifier) Option {
	return func(g *FallbackGateway) { g.notifier = n }
}

func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(g *FallbackGateway) { g.cache = c }
}

func WithLogger(log *slog.Logger) Option {
	return func(g *FallbackGateway) {
		if log != nil {
			g.log = log
		}
	}
}

// FallbackGateway executes operations against a Provider and writes them to a
// QueueStore whenever the provider reports itself unavailable.
type FallbackGateway struct {
	provider Provider
	queue    QueueStore
	notifier Notifier
	cache    AvailabilityCache
	cfg      Config
	log      *slog.Logger
}

func NewFallbackGateway(provider Provider, queue QueueStore, cfg Config, opts ...Option) *FallbackGateway {
	g := &FallbackGateway{
		provider: provider,
		queue:    queue,
		cfg:      cfg,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(slog.Int64("tenant_id", cfg.TenantID), slog.String("list", cfg.Shortname))
	return g
}

func (g *FallbackGateway) Shortname() string { return g.cfg.Shortname }

func (g *FallbackGateway) TenantID() int64 { return g.cfg.TenantID }

// IsAvailable pings the provider. When an AvailabilityCache is configured
// the answer is reused for AvailabilityTTL.
func (g *FallbackGateway) IsAvailable(ctx context.Context) bool {
	key := strconv.FormatInt(g.cfg.TenantID, 10)
	if g.cache != nil && g.cfg.AvailabilityTTL > 0 {
		if available, ok := g.cache.Get(ctx, key); ok {
			return available
		}
	}

	err := g.provider.Ping(ctx)
	available := err == nil
	if err != nil {
		g.log.WarnContext(ctx, "provider unavailable", slog.String("error", err.Error()))
	}

	if g.cache != nil && g.cfg.AvailabilityTTL > 0 {
		g.cache.Set(ctx, key, available, g.cfg.AvailabilityTTL)
	}
	return available
}

func (g *FallbackGateway) IsMember(ctx context.Context, address string) (bool, error) {
	if !g.IsAvailable(ctx) {
		return false, ErrProviderUnavailable
	}
	return g.provider.IsMember(ctx, address)
}

// ====================== Mutations ======================

func (g *FallbackGateway) Subscribe(ctx context.Context, address string, info map[string]string, sendWelcome bool, fields model.FieldMap) model.ResultCode {
	if !g.IsAvailable(ctx) {
		code, err := g.queue.EnqueueSubscribe(ctx, address, info, sendWelcome, g.cfg.TenantID)
		return g.queued(ctx, model.OpSubscribe, code, err)
	}
	return g.applySubscribe(ctx, model.Subscriber{Address: address, Info: info}, sendWelcome, fields)
}

func (g *FallbackGateway) BatchSubscribe(ctx context.Context, subscribers []model.Subscriber, sendWelcome bool, fields model.FieldMap) model.ResultCode {
	if !g.IsAvailable(ctx) {
		code, err := g.queue.EnqueueBatchSubscribe(ctx, subscribers, sendWelcome, g.cfg.TenantID)
		return g.queued(ctx, model.OpSubscribe, code, err)
	}
	codes := make([]model.ResultCode, 0, len(subscribers))
	for _, s := range subscribers {
		codes = append(codes, g.applySubscribe(ctx, s, sendWelcome, fields))
	}
	return model.Worst(codes...)
}

func (g *FallbackGateway) Unsubscribe(ctx context.Context, address string) model.ResultCode {
	if !g.IsAvailable(ctx) {
		code, err := g.queue.EnqueueUnsubscribe(ctx, address, g.cfg.TenantID)
		return g.queued(ctx, model.OpUnsubscribe, code, err)
	}
	return g.applyUnsubscribe(ctx, address)
}

func (g *FallbackGateway) BatchUnsubscribe(ctx context.Context, addresses []string) model.ResultCode {
	if !g.IsAvailable(ctx) {
		code, err := g.queue.EnqueueBatchUnsubscribe(ctx, addresses, g.cfg.TenantID)
		return g.queued(ctx, model.OpUnsubscribe, code, err)
	}
	codes := make([]model.ResultCode, 0, len(addresses))
	for _, a := range addresses {
		codes = append(codes, g.applyUnsubscribe(ctx, a))
	}
	return model.Worst(codes...)
}

func (g *FallbackGateway) Update(ctx context.Context, address string, info map[string]string, fields model.FieldMap) model.ResultCode {
	if !g.IsAvailable(ctx) {
		code, err := g.queue.EnqueueUpdate(ctx, address, info, g.cfg.TenantID)
		return g.queued(ctx, model.OpUpdate, code, err)
	}
	return g.applyUpdate(ctx, model.Subscriber{Address: address, Info: info}, fields)
}

func (g *FallbackGateway) BatchUpdate(ctx context.Context, subscribers []model.Subscriber, fields model.FieldMap) model.ResultCode {
	if !g.IsAvailable(ctx) {
		code, err := g.queue.EnqueueBatchUpdate(ctx, subscribers, g.cfg.TenantID)
		return g.queued(ctx, model.OpUpdate, code, err)
	}
	codes := make([]model.ResultCode, 0, len(subscribers))
	for _, s := range subscribers {
		codes = append(codes, g.applyUpdate(ctx, s, fields))
	}
	return model.Worst(codes...)
}

// Replay performs a queued entry against the provider without consulting
// availability or re-queueing.
func (g *FallbackGateway) Replay(ctx context.Context, entry model.QueueEntry, fields model.FieldMap) model.ResultCode {
	switch entry.Kind {
	case model.OpSubscribe:
		return g.applySubscribe(ctx, model.Subscriber{Address: entry.Address, Info: entry.Info}, entry.SendWelcome, fields)
	case model.OpUnsubscribe:
		return g.applyUnsubscribe(ctx, entry.Address)
	case model.OpUpdate:
		return g.applyUpdate(ctx, model.Subscriber{Address: entry.Address, Info: entry.Info}, fields)
	}
	g.log.ErrorContext(ctx, "unknown queue entry kind", slog.String("kind", string(entry.Kind)), slog.Int64("entry_id", entry.ID))
	return model.Failure
}

func (g *FallbackGateway) applySubscribe(ctx context.Context, sub model.Subscriber, sendWelcome bool, fields model.FieldMap) model.ResultCode {
	if !ValidAddress(sub.Address) {
		return model.Invalid
	}
	sub.Info = fields.Apply(sub.Info)
	return g.classify(ctx, model.OpSubscribe, sub.Address, g.provider.Subscribe(ctx, sub, sendWelcome))
}

func (g *FallbackGateway) applyUnsubscribe(ctx context.Context, address string) model.ResultCode {
	return g.classify(ctx, model.OpUnsubscribe, address, g.provider.Unsubscribe(ctx, address))
}

func (g *FallbackGateway) applyUpdate(ctx context.Context, sub model.Subscriber, fields model.FieldMap) model.ResultCode {
	if !ValidAddress(sub.Address) {
		return model.Invalid
	}
	sub.Info = fields.Apply(sub.Info)
	return g.classify(ctx, model.OpUpdate, sub.Address, g.provider.Update(ctx, sub))
}

func (g *FallbackGateway) classify(ctx context.Context, kind model.OperationKind, address string, err error) model.ResultCode {
	switch {
	case err == nil:
		return model.Success
	case errors.Is(err, ErrNotMember):
		return model.NotFound
	case errors.Is(err, ErrAlreadyUnsubscribed):
		return model.NotSubscribed
	}
	g.log.ErrorContext(ctx, "provider operation failed",
		slog.String("operation", string(kind)),
		slog.String("email", address),
		slog.String("error", err.Error()),
	)
	return model.Failure
}

// queued converts a queue write into a ResultCode. Storage errors surface as
// FAILURE so the caller can tell the user to retry.
func (g *FallbackGateway) queued(ctx context.Context, kind model.OperationKind, code model.ResultCode, err error) model.ResultCode {
	if err != nil {
		g.log.ErrorContext(ctx, "failed to queue list operation",
			slog.String("operation", string(kind)),
			slog.String("error", err.Error()),
		)
		return model.Failure
	}

	if g.notifier != nil {
		n := model.QueueNotification{TenantID: g.cfg.TenantID, Kind: kind}
		if err := g.notifier.Notify(ctx, n); err != nil {
			g.log.WarnContext(ctx, "failed to publish queue notification", slog.String("error", err.Error()))
		}
	}
	return code
}

// ====================== Campaigns ======================

func (g *FallbackGateway) SaveCampaign(ctx context.Context, content *model.CampaignContent) error {
	if !g.IsAvailable(ctx) {
		return ErrProviderUnavailable
	}
	return g.provider.SaveCampaign(ctx, content)
}

func (g *FallbackGateway) DeleteCampaign(ctx context.Context, shortname string) error {
	if !g.IsAvailable(ctx) {
		return ErrProviderUnavailable
	}
	return g.provider.DeleteCampaign(ctx, shortname)
}

// ValidAddress reports whether address is a syntactically valid email.
func ValidAddress(address string) bool {
	return checkmail.ValidateFormat(address) == nil
}

var _ Gateway = (*FallbackGateway)(nil)

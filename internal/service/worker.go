package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/model"
)

var errReplayFailed = errors.New("replay failed")

// scheduleParser accepts five-field cron expressions and descriptors such as
// "@every 30s".
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// QueueRepository defines the methods the drainer needs
type QueueRepository interface {
	Drain(ctx context.Context, tenantID int64, limit int, fn func([]model.QueueEntry) error) (int, error)
	Pending(ctx context.Context, tenantID int64) (map[model.OperationKind]int, error)
}

// Replayer applies queued entries for one tenant's list.
type Replayer interface {
	TenantID() int64
	IsAvailable(ctx context.Context) bool
	Replay(ctx context.Context, entry model.QueueEntry, fields model.FieldMap) model.ResultCode
}

// QueueDrainer moves queued list operations to the provider once it is
// reachable again.
type QueueDrainer struct {
	Repo      QueueRepository
	Gateway   Replayer
	Fields    model.FieldMap
	BatchSize int
	Log       *slog.Logger
}

func NewQueueDrainer(repo QueueRepository, gateway Replayer, fields model.FieldMap, batchSize int, log *slog.Logger) *QueueDrainer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &QueueDrainer{
		Repo:      repo,
		Gateway:   gateway,
		Fields:    fields,
		BatchSize: batchSize,
		Log:       log,
	}
}

// Drain replays the tenant's queue in the order it was written and returns
// how many entries were removed. A FAILURE result rolls back the batch it
// occurred in, so entries before it in that batch are replayed again on the
// next drain. When the provider is unavailable Drain stops and returns an
// error wrapping list.ErrProviderUnavailable so callers retry later.
func (d *QueueDrainer) Drain(ctx context.Context, tenantID int64) (int, error) {
	if tenantID != d.Gateway.TenantID() {
		d.Log.WarnContext(ctx, "ignoring drain for foreign tenant", slog.Int64("tenant_id", tenantID))
		return 0, nil
	}

	total := 0
	for {
		if !d.Gateway.IsAvailable(ctx) {
			return total, fmt.Errorf("drain tenant %d after %d entries: %w", tenantID, total, list.ErrProviderUnavailable)
		}

		n, err := d.Repo.Drain(ctx, tenantID, d.BatchSize, func(entries []model.QueueEntry) error {
			return d.replay(ctx, entries)
		})
		if err != nil {
			return total, fmt.Errorf("drain tenant %d queue: %w", tenantID, err)
		}
		total += n
		if n < d.BatchSize {
			return total, nil
		}
	}
}

func (d *QueueDrainer) replay(ctx context.Context, entries []model.QueueEntry) error {
	for _, e := range entries {
		code := d.Gateway.Replay(ctx, e, d.Fields)
		switch code {
		case model.Success:
		case model.Failure:
			return fmt.Errorf("%w: %s entry %d", errReplayFailed, e.Kind, e.ID)
		default:
			// the provider answered; retrying cannot change the outcome
			d.Log.WarnContext(ctx, "queued entry rejected",
				slog.String("operation", string(e.Kind)),
				slog.Int64("entry_id", e.ID),
				slog.String("email", e.Address),
				slog.String("code", code.String()),
			)
		}
	}
	return nil
}

// Pending reports how many entries of each kind are waiting.
func (d *QueueDrainer) Pending(ctx context.Context, tenantID int64) (map[model.OperationKind]int, error) {
	return d.Repo.Pending(ctx, tenantID)
}

// ScheduleDrain adds a job to c that drains tenantID on every tick of expr.
// It picks up entries whose wake-up arrived while the provider was down.
func (d *QueueDrainer) ScheduleDrain(ctx context.Context, c *cron.Cron, expr string, tenantID int64) (cron.EntryID, error) {
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid drain schedule %q: %w", expr, err)
	}
	return c.Schedule(schedule, cron.FuncJob(func() {
		d.scheduledDrain(ctx, tenantID)
	})), nil
}

func (d *QueueDrainer) scheduledDrain(ctx context.Context, tenantID int64) {
	n, err := d.Drain(ctx, tenantID)
	switch {
	case errors.Is(err, list.ErrProviderUnavailable):
		d.Log.DebugContext(ctx, "provider unavailable, scheduled drain skipped", slog.Int64("tenant_id", tenantID))
	case err != nil:
		d.Log.WarnContext(ctx, "scheduled drain failed", slog.Int64("tenant_id", tenantID), slog.String("error", err.Error()))
	case n > 0:
		d.Log.InfoContext(ctx, "scheduled drain finished", slog.Int64("tenant_id", tenantID), slog.Int("entries", n))
	}
}

package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/metrics"
	"condo-assistant/internal/repository"
)

// Rows is the bookkeeping table the sweeper drains.
type Rows interface {
	DuePending(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledDeletion, error)
	Expired(ctx context.Context, status domain.DeletionStatus, cutoff time.Time, limit int) ([]domain.ScheduledDeletion, error)
	Resolve(ctx context.Context, rows []domain.ScheduledDeletion) error
	Purge(ctx context.Context, rows []domain.ScheduledDeletion) (int, error)
}

// Objects removes the backing files. A missing object must not be an error.
type Objects interface {
	Delete(ctx context.Context, bucket, key string) error
}

type Options struct {
	BatchSize      int
	Retention      time.Duration
	ReclaimBatches int
}

// Report summarises one Run.
type Report struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Reclaimed int `json:"reclaimed"`
}

type Sweeper struct {
	rows    Rows
	objects Objects
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
}

func New(rows Rows, objects Objects, opts Options, log zerolog.Logger) (*Sweeper, error) {
	if rows == nil {
		return nil, errors.New("sweeper: rows must not be nil")
	}
	if objects == nil {
		return nil, errors.New("sweeper: objects must not be nil")
	}
	if opts.BatchSize <= 0 || opts.BatchSize > repository.MaxResolveBatch {
		opts.BatchSize = repository.MaxResolveBatch
	}
	if opts.ReclaimBatches <= 0 {
		opts.ReclaimBatches = 1
	}
	if opts.Retention <= 0 {
		opts.Retention = 7 * 24 * time.Hour
	}
	return &Sweeper{
		rows:    rows,
		objects: objects,
		opts:    opts,
		log:     log.With().Str("component", "sweeper").Logger(),
		now:     time.Now,
	}, nil
}

// Run performs one sweep followed by one reclaim pass. The report carries
// the sweep counts even when reclaim fails.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	rep, err := s.Sweep(ctx)
	if err != nil {
		return rep, err
	}
	n, err := s.Reclaim(ctx)
	rep.Reclaimed = n
	if err != nil {
		return rep, err
	}
	s.log.Info().
		Int("due", rep.Due).
		Int("completed", rep.Completed).
		Int("failed", rep.Failed).
		Int("reclaimed", rep.Reclaimed).
		Msg("sweep finished")
	return rep, nil
}

// Sweep deletes the objects of every pending row past its deadline and
// commits their final status in one atomic write. Each row ends completed or error; one failing
// delete never stops the others.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	now := s.now().UTC()
	due, err := s.rows.DuePending(ctx, now, s.opts.BatchSize)
	if err != nil {
		return Report{}, fmt.Errorf("sweeper: Sweep: %w", err)
	}
	rep := Report{Due: len(due)}
	if len(due) == 0 {
		return rep, nil
	}

	resolved := make([]domain.ScheduledDeletion, 0, len(due))
	for _, row := range due {
		row.UpdatedAt = now
		if err := s.objects.Delete(ctx, row.Bucket, row.ObjectPath); err != nil {
			s.log.Warn().Err(err).Str("id", row.ID).Str("key", row.ObjectPath).Msg("object delete failed")
			row.Status = domain.DeletionError
			row.Error = err.Error()
			rep.Failed++
		} else {
			row.Status = domain.DeletionCompleted
			row.Error = ""
			rep.Completed++
		}
		resolved = append(resolved, row)
	}

	// One transaction for the whole batch; BatchSize never exceeds what a
	// single Resolve accepts.
	if err := s.rows.Resolve(ctx, resolved); err != nil {
		return rep, fmt.Errorf("sweeper: Sweep resolve: %w", err)
	}
	metrics.SweptDeletionsTotal.WithLabelValues(string(domain.DeletionCompleted)).Add(float64(rep.Completed))
	metrics.SweptDeletionsTotal.WithLabelValues(string(domain.DeletionError)).Add(float64(rep.Failed))
	return rep, nil
}

// Reclaim deletes finished rows whose deadline is older than the retention
// period, at most ReclaimBatches batches per status.
func (s *Sweeper) Reclaim(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.opts.Retention)
	total := 0
	for _, status := range []domain.DeletionStatus{domain.DeletionCompleted, domain.DeletionError} {
		for i := 0; i < s.opts.ReclaimBatches; i++ {
			rows, err := s.rows.Expired(ctx, status, cutoff, s.opts.BatchSize)
			if err != nil {
				return total, fmt.Errorf("sweeper: Reclaim %s: %w", status, err)
			}
			if len(rows) == 0 {
				break
			}
			n, err := s.rows.Purge(ctx, rows)
			total += n
			metrics.ReclaimedRowsTotal.Add(float64(n))
			if err != nil {
				return total, fmt.Errorf("sweeper: Reclaim %s: %w", status, err)
			}
			if len(rows) < s.opts.BatchSize || n == 0 {
				break
			}
		}
	}
	return total, nil
}

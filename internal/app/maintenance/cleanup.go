package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/models"
	"github.com/asinehq/asine-console/internal/services"
	"github.com/asinehq/asine-console/pkg/logger"
)

const (
	defaultTokenSpec   = "@daily"
	defaultHistorySpec = "@weekly"
)

// Cleaner coordinates background maintenance: clearing expired verification
// tokens and pruning subscription history past its retention window.
type Cleaner struct {
	db           *gorm.DB
	verification *services.VerificationService
	cron         *cron.Cron
	now          func() time.Time
	log          *zap.Logger
	enabled      bool

	retentionDays int
	tokenSchedule string
	historySpec   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTokenSchedule overrides the cron specification for token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithHistoryRetentionDays enables pruning of subscription history older
// than the given number of days. Zero disables pruning; the history is an
// audit trail and is kept indefinitely by default.
func WithHistoryRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retentionDays = days
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, verification *services.VerificationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:            db,
		verification:  verification,
		now:           time.Now,
		tokenSchedule: defaultTokenSpec,
		historySpec:   defaultHistorySpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.verification != nil || (cleaner.db != nil && cleaner.retentionDays > 0)

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it when
// at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.verification != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			if _, err := c.verification.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("verification token cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil && c.retentionDays > 0 {
		if _, err := c.cron.AddFunc(c.historySpec, func() {
			if _, err := c.pruneHistory(context.Background()); err != nil {
				c.log.Warn("subscription history pruning failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.verification != nil {
		if _, err := c.verification.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil && c.retentionDays > 0 {
		if _, err := c.pruneHistory(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) pruneHistory(ctx context.Context) (int64, error) {
	cutoff := c.now().AddDate(0, 0, -c.retentionDays)
	result := c.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&models.Subscription{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		c.log.Info("pruned subscription history",
			zap.Int64("rows", result.RowsAffected),
			zap.Time("cutoff", cutoff))
	}
	return result.RowsAffected, nil
}

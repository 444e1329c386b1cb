package workers

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studyhall-dev/studyhall/internal/models"
	"github.com/studyhall-dev/studyhall/internal/store"
	"github.com/studyhall-dev/studyhall/internal/tasks"
)

// StartSweepScheduler runs a periodic check (every minute) for pending
// profile writes that still need retrying
func StartSweepScheduler(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run immediately on startup, then every minute
	checkAndEnqueueSweep(client, db, logger)

	for range ticker.C {
		checkAndEnqueueSweep(client, db, logger)
	}
}

func checkAndEnqueueSweep(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	var cfg models.LocalConfig
	err := db.First(&cfg).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Debug().Msg("No local config found - skipping sweep check")
			return
		}
		logger.Error().Err(err).Msg("Failed to query local config for sweep")
		return
	}

	if cfg.SweepSchedule == "" {
		logger.Debug().Msg("No sweep schedule configured")
		return
	}

	if cfg.NextSweepAt != nil && cfg.NextSweepAt.After(time.Now()) {
		logger.Debug().
			Time("next_sweep_at", *cfg.NextSweepAt).
			Msg("Sweep not due yet")
		return
	}

	outbox := store.NewOutbox(db)
	pending, err := outbox.Pending()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list pending profile writes")
		return
	}

	for _, write := range pending {
		task, err := tasks.NewCompleteProfileTask(write.ID)
		if err != nil {
			logger.Error().Err(err).Str("profile_write_id", write.ID).Msg("Failed to create retry task")
			continue
		}
		if _, err := client.Enqueue(task, asynq.Timeout(5*time.Minute)); err != nil {
			logger.Error().Err(err).Str("profile_write_id", write.ID).Msg("Failed to enqueue retry task")
			continue
		}
	}

	if len(pending) > 0 {
		logger.Info().Int("pending", len(pending)).Msg("Sweep enqueued pending profile writes")
	}

	// Update NextSweepAt immediately so the sweep does not re-fire every
	// minute before the tasks complete
	now := time.Now()
	next := calculateNextSweepTime(cfg.SweepSchedule, now)
	if next != nil {
		updates := map[string]any{"last_sweep_at": &now, "next_sweep_at": next}
		if err := db.Model(&cfg).Updates(updates).Error; err != nil {
			logger.Error().Err(err).Msg("Failed to update next_sweep_at")
		}
	}
}

// calculateNextSweepTime calculates the next sweep time from a cron schedule
func calculateNextSweepTime(cronExpr string, from time.Time) *time.Time {
	if cronExpr == "" {
		return nil
	}

	// Standard 5-field format: minute hour day-of-month month day-of-week
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil
	}

	next := schedule.Next(from)
	return &next
}

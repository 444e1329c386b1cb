package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/studyhall-dev/studyhall/internal/models"
	"github.com/studyhall-dev/studyhall/internal/session"
	"github.com/studyhall-dev/studyhall/internal/store"
	"github.com/studyhall-dev/studyhall/internal/tasks"
)

// Enqueuer records failed sign-up profile writes in the outbox and hands
// them to the task queue for retry. It satisfies session.Completions.
type Enqueuer struct {
	outbox *store.Outbox
	client *asynq.Client
	logger zerolog.Logger
}

// NewEnqueuer creates a completions enqueuer
func NewEnqueuer(outbox *store.Outbox, client *asynq.Client, logger zerolog.Logger) *Enqueuer {
	return &Enqueuer{outbox: outbox, client: client, logger: logger}
}

// EnqueueProfileWrite records the pending write and schedules a retry task.
// The outbox row is the source of truth; losing the queue message only
// delays the retry until the next sweep.
func (e *Enqueuer) EnqueueProfileWrite(ctx context.Context, p session.PendingProfile) error {
	write := &models.ProfileWrite{
		UID:         p.UID,
		Email:       p.Email,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		TeacherID:   p.TeacherID,
	}

	if err := e.outbox.Enqueue(write); err != nil {
		return fmt.Errorf("failed to record pending profile write: %w", err)
	}

	task, err := tasks.NewCompleteProfileTask(write.ID)
	if err != nil {
		return err
	}

	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		e.logger.Warn().Err(err).Str("profile_write_id", write.ID).Msg("Failed to enqueue retry task, sweep will pick it up")
		return nil
	}

	e.logger.Info().Str("profile_write_id", write.ID).Str("uid", p.UID).Msg("Pending profile write queued for retry")

	return nil
}

package workers

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/studyhall-dev/studyhall/internal/docstore"
	"github.com/studyhall-dev/studyhall/internal/store"
	"github.com/studyhall-dev/studyhall/internal/tasks"
)

// usersCollection mirrors the collection the session layer writes to
const usersCollection = "users"

// HandleCompleteProfile retries a pending role-document write. The write is
// a full overwrite keyed by uid, so running it more than once is safe.
func HandleCompleteProfile(ctx context.Context, t *asynq.Task, outbox *store.Outbox, docs docstore.Store, logger zerolog.Logger) error {
	payload, err := tasks.ParseCompleteProfilePayload(t)
	if err != nil {
		return err
	}

	write, err := outbox.Get(payload.ProfileWriteID)
	if err != nil {
		logger.Error().Err(err).Str("profile_write_id", payload.ProfileWriteID).Msg("Failed to load pending profile write")
		return err
	}

	if write.CompletedAt != nil {
		logger.Debug().Str("profile_write_id", write.ID).Msg("Profile write already completed")
		return nil
	}

	fields := map[string]any{
		"email":       write.Email,
		"role":        write.Role,
		"displayName": write.DisplayName,
		"createdAt":   write.CreatedAt.UTC().Format(time.RFC3339),
	}
	if write.TeacherID != "" {
		fields["teacherId"] = write.TeacherID
	}

	if err := docs.SetDocument(ctx, usersCollection, write.UID, fields); err != nil {
		if recordErr := outbox.RecordFailure(write.ID, err); recordErr != nil {
			logger.Error().Err(recordErr).Str("profile_write_id", write.ID).Msg("Failed to record attempt")
		}
		logger.Warn().Err(err).Str("profile_write_id", write.ID).Str("uid", write.UID).Msg("Profile write retry failed")
		return err
	}

	if err := outbox.MarkCompleted(write.ID); err != nil {
		logger.Error().Err(err).Str("profile_write_id", write.ID).Msg("Failed to mark profile write completed")
		return err
	}

	logger.Info().Str("profile_write_id", write.ID).Str("uid", write.UID).Msg("Pending profile write completed")

	return nil
}

package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// Sign-up reconciliation task (retries failed role-document writes)
	TypeCompleteProfile = "signup:complete_profile"
)

// CompleteProfilePayload carries the outbox row to retry
type CompleteProfilePayload struct {
	ProfileWriteID string `json:"profile_write_id"`
}

// NewCompleteProfileTask creates a task that retries a pending profile write
func NewCompleteProfileTask(profileWriteID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CompleteProfilePayload{
		ProfileWriteID: profileWriteID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeCompleteProfile, payload), nil
}

// ParseCompleteProfilePayload parses task payload from an Asynq task
func ParseCompleteProfilePayload(task *asynq.Task) (CompleteProfilePayload, error) {
	var payload CompleteProfilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGroupIntegrity scans for broken single-user group invariants.
	TaskGroupIntegrity = "group:integrity"
	// TaskThumbnailBackfill creates missing survey cutout thumbnails.
	TaskThumbnailBackfill = "thumbnail:backfill"
	// TaskSessionPrune removes expired session records.
	TaskSessionPrune = "session:prune"
)

// ThumbnailBackfillPayload bounds one backfill run.
type ThumbnailBackfillPayload struct {
	Batch int `json:"batch"`
}

// NewGroupIntegrityTask constructs the integrity-scan task.
func NewGroupIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskGroupIntegrity, nil)
}

// NewThumbnailBackfillTask constructs a backfill task covering at most
// batch objs.
func NewThumbnailBackfillTask(batch int) (*asynq.Task, error) {
	data, err := json.Marshal(ThumbnailBackfillPayload{Batch: batch})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskThumbnailBackfill, data), nil
}

// NewSessionPruneTask constructs the session-prune task.
func NewSessionPruneTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPrune, nil)
}

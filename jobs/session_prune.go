package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/aurora-portal/aurora/internal/jobs"
)

// SessionPruneJob removes session audit rows whose Redis counterpart
// has already expired.
type SessionPruneJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionPruneJob constructs the job. Metrics may be nil.
func NewSessionPruneJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPruneJob {
	return &SessionPruneJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskSessionPrune tasks.
func (j *SessionPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("session_prune")
	return tracker.End(j.prune(ctx))
}

func (j *SessionPruneJob) prune(ctx context.Context) error {
	tag, err := j.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return err
	}
	j.logger.Info("pruned expired sessions", slog.Int64("removed", tag.RowsAffected()))
	return nil
}

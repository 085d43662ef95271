package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/aurora-portal/aurora/internal/jobs"
)

// GroupIntegrityJob scans for users whose single-user group is missing,
// misnamed, or shared. Violations are logged; repairs are left to an
// operator since they usually indicate a bug in user lifecycle code.
type GroupIntegrityJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewGroupIntegrityJob constructs the job. Metrics may be nil.
func NewGroupIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *GroupIntegrityJob {
	return &GroupIntegrityJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskGroupIntegrity tasks.
func (j *GroupIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("group_integrity")
	return tracker.End(j.scan(ctx))
}

func (j *GroupIntegrityJob) scan(ctx context.Context) error {
	missing, err := j.scanMissingGroups(ctx)
	if err != nil {
		return err
	}
	shared, err := j.scanMembership(ctx)
	if err != nil {
		return err
	}
	j.metrics.AddViolations("missing_group", missing)
	j.metrics.AddViolations("membership", shared)
	j.logger.Info("group integrity scan finished", slog.Int("violations", missing+shared))
	return nil
}

func (j *GroupIntegrityJob) scanMissingGroups(ctx context.Context) (int, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT u.id, u.username FROM users u
		WHERE NOT EXISTS (
			SELECT 1 FROM group_users gu
			JOIN groups g ON g.id = gu.group_id
			WHERE gu.user_id = u.id AND g.single_user_group
		)`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var id int64
		var username string
		if err := rows.Scan(&id, &username); err != nil {
			return count, err
		}
		count++
		j.logger.Warn("user missing single-user group",
			slog.Int64("user_id", id), slog.String("username", username))
	}
	return count, rows.Err()
}

func (j *GroupIntegrityJob) scanMembership(ctx context.Context) (int, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT g.id, g.name, COUNT(gu.user_id)
		FROM groups g
		LEFT JOIN group_users gu ON gu.group_id = g.id
		WHERE g.single_user_group
		GROUP BY g.id, g.name
		HAVING COUNT(gu.user_id) <> 1`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var id int64
		var name string
		var members int
		if err := rows.Scan(&id, &name, &members); err != nil {
			return count, err
		}
		count++
		j.logger.Warn("single-user group has wrong membership",
			slog.Int64("group_id", id), slog.String("name", name), slog.Int("members", members))
	}
	return count, rows.Err()
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/aurora-portal/aurora/internal/jobs"
	"github.com/aurora-portal/aurora/internal/observations"
)

const defaultBackfillBatch = 200

// ThumbnailBackfillJob creates survey cutout thumbnails for objs that
// have photometry but are missing one of the cutout types.
type ThumbnailBackfillJob struct {
	service *observations.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewThumbnailBackfillJob constructs the job. Metrics may be nil.
func NewThumbnailBackfillJob(service *observations.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ThumbnailBackfillJob {
	return &ThumbnailBackfillJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskThumbnailBackfill tasks.
func (j *ThumbnailBackfillJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("thumbnail_backfill")
	return tracker.End(j.run(ctx, t))
}

func (j *ThumbnailBackfillJob) run(ctx context.Context, t *asynq.Task) error {
	var payload ThumbnailBackfillPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	batch := payload.Batch
	if batch <= 0 {
		batch = defaultBackfillBatch
	}

	objIDs, err := j.service.MissingThumbnailObjs(ctx, batch)
	if err != nil {
		return err
	}
	var filled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, objID := range objIDs {
		g.Go(func() error {
			if err := j.service.BackfillThumbnails(gctx, objID); err != nil {
				j.logger.Warn("thumbnail backfill failed",
					slog.String("obj_id", objID), slog.Any("error", err))
				return nil
			}
			filled.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	j.logger.Info("thumbnail backfill finished",
		slog.Int("candidates", len(objIDs)), slog.Int64("filled", filled.Load()))
	return nil
}

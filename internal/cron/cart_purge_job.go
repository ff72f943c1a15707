package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/thanhledev/audiomart-backend/pkg/logger"
)

const purgeBatchSize = 200

type cartPurger interface {
	PurgeOldCarts(ctx context.Context, maxAge time.Duration, batchSize int) (int, error)
}

// CartPurgeJobParams configure the closed-cart retention job.
type CartPurgeJobParams struct {
	Logger   *logger.Logger
	Carts    cartPurger
	PurgeAge time.Duration
}

// NewCartPurgeJob builds the job that deletes abandoned and checked-out
// carts past retention.
func NewCartPurgeJob(params CartPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.PurgeAge <= 0 {
		return nil, fmt.Errorf("purge age must be positive")
	}
	return &cartPurgeJob{
		logg:     params.Logger,
		carts:    params.Carts,
		purgeAge: params.PurgeAge,
	}, nil
}

type cartPurgeJob struct {
	logg     *logger.Logger
	carts    cartPurger
	purgeAge time.Duration
}

func (j *cartPurgeJob) Name() string { return "cart-purge" }

func (j *cartPurgeJob) Run(ctx context.Context) error {
	purged, err := j.carts.PurgeOldCarts(ctx, j.purgeAge, purgeBatchSize)
	logCtx := j.logg.WithField(ctx, "purged", purged)
	if err != nil {
		return fmt.Errorf("purge carts: %w", err)
	}
	j.logg.Info(logCtx, "cart purge complete")
	return nil
}

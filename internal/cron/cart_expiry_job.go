package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/thanhledev/audiomart-backend/pkg/logger"
)

const expiryBatchSize = 200

type cartExpirer interface {
	ExpireStaleGuestCarts(ctx context.Context, maxAge time.Duration, batchSize int) (int, error)
}

// CartExpiryJobParams configure the guest cart expiry job.
type CartExpiryJobParams struct {
	Logger   *logger.Logger
	Carts    cartExpirer
	GuestTTL time.Duration
}

// NewCartExpiryJob builds the job that abandons idle guest carts and frees
// their stock holds.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.GuestTTL <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &cartExpiryJob{
		logg:     params.Logger,
		carts:    params.Carts,
		guestTTL: params.GuestTTL,
	}, nil
}

type cartExpiryJob struct {
	logg     *logger.Logger
	carts    cartExpirer
	guestTTL time.Duration
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	expired, err := j.carts.ExpireStaleGuestCarts(ctx, j.guestTTL, expiryBatchSize)
	logCtx := j.logg.WithField(ctx, "expired", expired)
	if err != nil {
		return fmt.Errorf("expire guest carts: %w", err)
	}
	j.logg.Info(logCtx, "guest cart expiry complete")
	return nil
}

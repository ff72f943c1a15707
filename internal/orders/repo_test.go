package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhledev/audiomart-backend/pkg/enums"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

func TestRepositoryUpdateStatusGuardsExpectedStatus(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending)

	// Wrong expected status must not touch the row.
	rows, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing, enums.OrderStatusCompleted, nil)
	require.NoError(t, err)
	assert.Zero(t, rows)

	rows, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, reloaded.Status)
	assert.Nil(t, reloaded.CompletedAt)
}

func TestRepositoryUpdateStatusStampsTerminalTimestamps(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusProcessing)
	stamp := time.Now().UTC().Truncate(time.Second)

	rows, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing, enums.OrderStatusCompleted, &stamp)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CompletedAt)
	assert.Nil(t, reloaded.CancelledAt)
}

func TestRepositoryFindByOrderNo(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending)

	found, err := repo.FindByOrderNo(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByOrderNo(ctx, "ORD-MISSING")
	assert.Error(t, err)
}

func TestRepositoryListFiltersAndPaginates(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	buyer := uuid.New()
	seedOrder(t, conn, buyer, enums.OrderStatusPending)
	seedOrder(t, conn, buyer, enums.OrderStatusCompleted)
	seedOrder(t, conn, uuid.New(), enums.OrderStatusPending)

	status := enums.OrderStatusPending
	list, total, err := repo.List(ctx, ListFilter{UserID: &buyer, Status: &status}, pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, buyer, list[0].UserID)

	list, total, err = repo.List(ctx, ListFilter{UserID: &buyer}, pagination.Params{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 1)
}

package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/learning-tracker/pkg/timeutil"
)

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := NewRegisterUserHandler(store, timeutil.NewFixedClock(now), nil)

	p, err := h.Handle(ctx, RegisterUserCommand{UserID: "  learner-1 ", DisplayName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, shared.UserID("learner-1"), p.UserID)
	assert.Equal(t, int64(1), p.Version)
	assert.Zero(t, p.TotalXP)
	assert.Nil(t, p.LastActivityAt)
	assert.Equal(t, now, p.CreatedAt)

	_, err = h.Handle(ctx, RegisterUserCommand{UserID: "learner-1"})
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = h.Handle(ctx, RegisterUserCommand{UserID: "has space"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

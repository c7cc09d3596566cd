package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/pkg/timeutil"
)

// RegisterUserCommand creates the empty progress record of a new account.
// Account management itself lives elsewhere; this is its hook into the tracker.
type RegisterUserCommand struct {
	UserID      string
	DisplayName string
}

// RegisterUserHandler handles RegisterUserCommand.
type RegisterUserHandler struct {
	progressRepo progress.ProgressRepository
	clock        timeutil.Clock
	logger       *slog.Logger
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(progressRepo progress.ProgressRepository, clock timeutil.Clock, logger *slog.Logger) *RegisterUserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &RegisterUserHandler{progressRepo: progressRepo, clock: clock, logger: logger}
}

// Handle creates the record. Registering an existing user returns ErrUserExists.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*progress.UserProgress, error) {
	id, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	p, err := progress.NewUserProgress(id, cmd.DisplayName, h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	if err := h.progressRepo.CreateUserProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	h.logger.Info("user registered", "user_id", id)
	return p, nil
}

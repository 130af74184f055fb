package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"biolink/internal/model"
	"biolink/internal/queue"
)

// Reconciler copies the authoritative view count onto the profile.
// This abstracts the service layer so workers don't depend on the DB directly.
type Reconciler interface {
	Reconcile(ctx context.Context, ownerID string) (int64, error)
}

// Handler processes view events from the queue.
type Handler struct {
	reconciler Reconciler
	logger     zerolog.Logger
}

// NewHandler creates a new event handler.
func NewHandler(reconciler Reconciler, logger zerolog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		logger:     logger.With().Str("component", "worker").Logger(),
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
// A returned error leaves the message pending so it is retried.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ViewEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventViewRecorded:
		err = h.handleViewRecorded(ctx, event)
	default:
		h.logger.Warn().Str("type", event.Type).Msg("unknown event type")
		return nil
	}

	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("handle event failed")
		return err
	}

	h.logger.Debug().Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("handled event")
	return nil
}

func (h *Handler) handleViewRecorded(ctx context.Context, event queue.ViewEvent) error {
	count, err := h.reconciler.Reconcile(ctx, event.OwnerID)
	if errors.Is(err, model.ErrNotFound) {
		// Nothing to repair for a profile that no longer resolves.
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", event.OwnerID, err)
	}

	h.logger.Info().Str("owner_id", event.OwnerID).Int64("count", count).Msg("view count reconciled")
	return nil
}

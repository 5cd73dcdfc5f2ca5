package port

import (
	"context"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
)

// StateRepository holds eventually-consistent copies of connection state for
// readers outside the executor.
type StateRepository interface {
	Save(ctx context.Context, state domain.NegotiationState) error
	Delete(ctx context.Context, id domain.ConnectionID) error
	Get(ctx context.Context, id domain.ConnectionID) (domain.NegotiationState, error)
	List(ctx context.Context) ([]domain.NegotiationState, error)
}

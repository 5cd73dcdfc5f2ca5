package service

import (
	"context"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/rs/zerolog/log"
)

var _ port.StateObserver = (*SnapshotPublisher)(nil)

// SnapshotPublisher mirrors connection state into a repository for readers
// that cannot wait on the executor.
type SnapshotPublisher struct {
	repo port.StateRepository
}

func NewSnapshotPublisher(repo port.StateRepository) *SnapshotPublisher {
	return &SnapshotPublisher{repo: repo}
}

func (p *SnapshotPublisher) OnStateChange(state domain.NegotiationState) {
	if err := p.repo.Save(context.Background(), state); err != nil {
		log.Error().Err(err).Str("connection_id", state.ConnectionID.String()).Msg("Failed to save connection state")
	}
}

func (p *SnapshotPublisher) OnConnectionClosed(id domain.ConnectionID) {
	if err := p.repo.Delete(context.Background(), id); err != nil {
		log.Error().Err(err).Str("connection_id", id.String()).Msg("Failed to delete connection state")
	}
}

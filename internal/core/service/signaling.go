package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/rs/zerolog/log"
)

var (
	_ port.NegotiationObserver = (*SignalingService)(nil)
	_ port.ErrorObserver       = (*SignalingService)(nil)
)

// SignalingService connects remote clients to a Peer: inbound signals become
// Peer calls, local descriptions, candidates and errors go back out through
// the gateway.
type SignalingService struct {
	peer    *Peer
	gateway port.RealTimeGateway
}

func NewSignalingService(peer *Peer, gateway port.RealTimeGateway) *SignalingService {
	return &SignalingService{
		peer:    peer,
		gateway: gateway,
	}
}

func (s *SignalingService) HandleSignal(ctx context.Context, signal domain.Signal) error {
	id := signal.ConnectionID
	if id == "" {
		return errors.New("signal without connection id")
	}

	switch signal.Type {
	case domain.SignalStart:
		return s.peer.GenerateOffer(id)
	case domain.SignalOffer:
		desc, err := domain.NewSessionDescription(domain.SDPOffer, signal.SDP)
		if err != nil {
			return err
		}
		return s.peer.ProcessOffer(id, desc)
	case domain.SignalAnswer:
		desc, err := domain.NewSessionDescription(domain.SDPAnswer, signal.SDP)
		if err != nil {
			return err
		}
		return s.peer.ProcessAnswer(id, desc)
	case domain.SignalCandidate:
		if signal.Candidate == nil {
			return errors.New("candidate signal without candidate")
		}
		return s.peer.AddRemoteCandidate(id, *signal.Candidate)
	case domain.SignalClose:
		return s.peer.CloseConnection(id)
	default:
		return fmt.Errorf("unsupported signal type %q", signal.Type)
	}
}

func (s *SignalingService) OnLocalOffer(id domain.ConnectionID, desc domain.SessionDescription) {
	s.send(id, domain.NewDescriptionSignal(id, desc))
}

func (s *SignalingService) OnLocalAnswer(id domain.ConnectionID, desc domain.SessionDescription) {
	s.send(id, domain.NewDescriptionSignal(id, desc))
}

func (s *SignalingService) OnLocalCandidate(id domain.ConnectionID, c domain.Candidate) {
	s.send(id, domain.NewCandidateSignal(id, c))
}

func (s *SignalingService) OnConnectionError(id domain.ConnectionID, err error) {
	s.send(id, domain.NewErrorSignal(id, err))
}

func (s *SignalingService) send(id domain.ConnectionID, signal domain.Signal) {
	if err := s.gateway.SendSignal(context.Background(), id, signal); err != nil {
		log.Error().Err(err).Str("connection_id", id.String()).Str("type", string(signal.Type)).Msg("Failed to send signal")
	}
}

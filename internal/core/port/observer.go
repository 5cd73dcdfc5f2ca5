package port

import "github.com/Wyydra/rtcpeer/internal/core/domain"

// Observers are split per concern. A consumer implements only the ones it
// cares about and registers itself once; the registry files it under every
// interface it satisfies. All callbacks run on the executor and must not
// block.

type NegotiationObserver interface {
	OnLocalOffer(id domain.ConnectionID, desc domain.SessionDescription)
	OnLocalAnswer(id domain.ConnectionID, desc domain.SessionDescription)
	OnLocalCandidate(id domain.ConnectionID, c domain.Candidate)
}

type StateObserver interface {
	OnStateChange(state domain.NegotiationState)
	OnConnectionClosed(id domain.ConnectionID)
}

type ConnectivityObserver interface {
	OnConnectivityStateChange(id domain.ConnectionID, state string)
}

type MediaStreamObserver interface {
	OnRemoteStreamAdded(id domain.ConnectionID, stream domain.MediaStream)
	OnRemoteStreamRemoved(id domain.ConnectionID, stream domain.MediaStream)
}

type DataChannelObserver interface {
	OnDataChannel(id domain.ConnectionID, label string)
	OnDataChannelStateChange(id domain.ConnectionID, label, state string)
	OnDataChannelMessage(id domain.ConnectionID, msg domain.DataChannelMessage)
}

type ErrorObserver interface {
	OnConnectionError(id domain.ConnectionID, err error)
}

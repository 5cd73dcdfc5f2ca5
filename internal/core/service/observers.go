package service

import (
	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
)

// observerSet fans events out to registered observers in registration order.
// It is confined to the executor like the registry that owns it.
type observerSet struct {
	negotiation  []port.NegotiationObserver
	state        []port.StateObserver
	connectivity []port.ConnectivityObserver
	streams      []port.MediaStreamObserver
	dataChannels []port.DataChannelObserver
	errors       []port.ErrorObserver
}

// add files o under every observer interface it implements and reports
// whether it implemented any.
func (s *observerSet) add(o any) bool {
	matched := false
	if v, ok := o.(port.NegotiationObserver); ok {
		s.negotiation = append(s.negotiation, v)
		matched = true
	}
	if v, ok := o.(port.StateObserver); ok {
		s.state = append(s.state, v)
		matched = true
	}
	if v, ok := o.(port.ConnectivityObserver); ok {
		s.connectivity = append(s.connectivity, v)
		matched = true
	}
	if v, ok := o.(port.MediaStreamObserver); ok {
		s.streams = append(s.streams, v)
		matched = true
	}
	if v, ok := o.(port.DataChannelObserver); ok {
		s.dataChannels = append(s.dataChannels, v)
		matched = true
	}
	if v, ok := o.(port.ErrorObserver); ok {
		s.errors = append(s.errors, v)
		matched = true
	}
	return matched
}

func (s *observerSet) localOffer(id domain.ConnectionID, desc domain.SessionDescription) {
	for _, o := range s.negotiation {
		o.OnLocalOffer(id, desc)
	}
}

func (s *observerSet) localAnswer(id domain.ConnectionID, desc domain.SessionDescription) {
	for _, o := range s.negotiation {
		o.OnLocalAnswer(id, desc)
	}
}

func (s *observerSet) localCandidate(id domain.ConnectionID, c domain.Candidate) {
	for _, o := range s.negotiation {
		o.OnLocalCandidate(id, c)
	}
}

func (s *observerSet) stateChanged(state domain.NegotiationState) {
	for _, o := range s.state {
		o.OnStateChange(state)
	}
}

func (s *observerSet) connectionClosed(id domain.ConnectionID) {
	for _, o := range s.state {
		o.OnConnectionClosed(id)
	}
}

func (s *observerSet) connectivityChanged(id domain.ConnectionID, state string) {
	for _, o := range s.connectivity {
		o.OnConnectivityStateChange(id, state)
	}
}

func (s *observerSet) streamAdded(id domain.ConnectionID, stream domain.MediaStream) {
	for _, o := range s.streams {
		o.OnRemoteStreamAdded(id, stream)
	}
}

func (s *observerSet) streamRemoved(id domain.ConnectionID, stream domain.MediaStream) {
	for _, o := range s.streams {
		o.OnRemoteStreamRemoved(id, stream)
	}
}

func (s *observerSet) dataChannel(id domain.ConnectionID, label string) {
	for _, o := range s.dataChannels {
		o.OnDataChannel(id, label)
	}
}

func (s *observerSet) dataChannelState(id domain.ConnectionID, label, state string) {
	for _, o := range s.dataChannels {
		o.OnDataChannelStateChange(id, label, state)
	}
}

func (s *observerSet) dataChannelMessage(id domain.ConnectionID, msg domain.DataChannelMessage) {
	for _, o := range s.dataChannels {
		o.OnDataChannelMessage(id, msg)
	}
}

func (s *observerSet) connectionError(id domain.ConnectionID, err error) {
	for _, o := range s.errors {
		o.OnConnectionError(id, err)
	}
}

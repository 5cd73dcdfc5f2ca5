package service

import (
	"fmt"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
)

var _ port.ResourceEvents = (*resourceEvents)(nil)

// resourceEvents moves engine notifications for one connection onto the
// executor before they reach observers.
type resourceEvents struct {
	n *Negotiator
}

func (e *resourceEvents) OnLocalCandidate(c domain.Candidate) {
	e.n.resume(func() { e.n.observers.localCandidate(e.n.id, c) })
}

func (e *resourceEvents) OnConnectivityStateChange(state string) {
	e.n.resume(func() {
		e.n.log.Debug().Str("state", state).Msg("Connectivity state changed")
		e.n.observers.connectivityChanged(e.n.id, state)
	})
}

func (e *resourceEvents) OnRemoteStreamAdded(stream domain.MediaStream) {
	e.n.resume(func() {
		if err := checkStream(stream); err != nil {
			e.n.report(&domain.ConnectionError{ID: e.n.id, Op: "remote_stream_added", Err: err})
			return
		}
		e.n.observers.streamAdded(e.n.id, stream)
	})
}

func (e *resourceEvents) OnRemoteStreamRemoved(stream domain.MediaStream) {
	e.n.resume(func() {
		if err := checkStream(stream); err != nil {
			e.n.report(&domain.ConnectionError{ID: e.n.id, Op: "remote_stream_removed", Err: err})
			return
		}
		e.n.observers.streamRemoved(e.n.id, stream)
	})
}

func (e *resourceEvents) OnDataChannel(label string) {
	e.n.resume(func() { e.n.observers.dataChannel(e.n.id, label) })
}

func (e *resourceEvents) OnDataChannelStateChange(label, state string) {
	e.n.resume(func() { e.n.observers.dataChannelState(e.n.id, label, state) })
}

func (e *resourceEvents) OnDataChannelMessage(msg domain.DataChannelMessage) {
	e.n.resume(func() { e.n.observers.dataChannelMessage(e.n.id, msg) })
}

func (e *resourceEvents) OnResourceError(err error) {
	e.n.resume(func() { e.n.collaboratorError("resource", err) })
}

// checkStream rejects streams with more than one audio or video track.
func checkStream(stream domain.MediaStream) error {
	if len(stream.AudioTracks) > 1 || len(stream.VideoTracks) > 1 {
		return fmt.Errorf("weird-looking stream %s: %d audio, %d video tracks",
			stream.ID, len(stream.AudioTracks), len(stream.VideoTracks))
	}
	return nil
}

package port

import "github.com/Wyydra/rtcpeer/internal/core/domain"

// Resource is the engine's handle for one underlying peer connection. The
// core only passes it back to the engine that created it.
type Resource interface {
	ConnectionID() domain.ConnectionID
}

// DescriptionCallback and DoneCallback receive asynchronous engine results.
// They may run on any goroutine; the core resubmits them onto its executor.
type DescriptionCallback func(desc domain.SessionDescription, err error)

type DoneCallback func(err error)

// MediaEngine is the contract with the media stack that does capture,
// encoding, transport and the ICE/DTLS handshakes.
type MediaEngine interface {
	CreateConnectionResource(id domain.ConnectionID, iceServers []domain.ICEServer, constraints domain.MediaConstraints, events ResourceEvents) (Resource, error)
	SynthesizeOffer(res Resource, constraints domain.MediaConstraints, done DescriptionCallback)
	SynthesizeAnswer(res Resource, constraints domain.MediaConstraints, done DescriptionCallback)
	ApplyLocalDescription(res Resource, desc domain.SessionDescription, done DoneCallback)
	ApplyRemoteDescription(res Resource, desc domain.SessionDescription, done DoneCallback)
	AddCandidate(res Resource, c domain.Candidate) error
	AddStream(res Resource, stream domain.MediaStream) error
	RemoveStream(res Resource, streamID string) error
	CreateDataChannel(res Resource, label string) error
	ReleaseResource(res Resource)
}

// ResourceEvents receives notifications the engine raises for one resource.
// Calls may arrive on any goroutine.
type ResourceEvents interface {
	OnLocalCandidate(c domain.Candidate)
	OnConnectivityStateChange(state string)
	OnRemoteStreamAdded(stream domain.MediaStream)
	OnRemoteStreamRemoved(stream domain.MediaStream)
	OnDataChannel(label string)
	OnDataChannelStateChange(label, state string)
	OnDataChannelMessage(msg domain.DataChannelMessage)
	OnResourceError(err error)
}

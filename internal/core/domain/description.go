package domain

import "errors"

type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

func (t SDPType) Valid() bool {
	return t == SDPOffer || t == SDPAnswer
}

// SessionDescription is immutable once built. A new description replaces an
// old one; nothing edits one in place.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

func NewSessionDescription(t SDPType, sdp string) (SessionDescription, error) {
	if !t.Valid() {
		return SessionDescription{}, errors.New("invalid session description type: " + string(t))
	}
	if sdp == "" {
		return SessionDescription{}, errors.New("session description cannot be empty")
	}
	return SessionDescription{Type: t, SDP: sdp}, nil
}

// WithSDP returns a copy carrying a rewritten payload.
func (d SessionDescription) WithSDP(sdp string) SessionDescription {
	return SessionDescription{Type: d.Type, SDP: sdp}
}

type Candidate struct {
	Candidate        string
	SDPMid           *string
	SDPMLineIndex    *uint16
	UsernameFragment *string
}

type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

type SignalingParameters struct {
	ICEServers []ICEServer
}

type MediaStream struct {
	ID          string
	AudioTracks []string
	VideoTracks []string
}

type DataChannelMessage struct {
	Label    string
	IsString bool
	Data     []byte
}

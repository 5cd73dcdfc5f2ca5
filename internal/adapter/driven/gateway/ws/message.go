package ws

import "github.com/Wyydra/rtcpeer/internal/core/domain"

// Message is the JSON frame exchanged with browsers, in both directions.
type Message struct {
	Type         string        `json:"type"`
	ConnectionID string        `json:"connection_id"`
	SDP          string        `json:"sdp,omitempty"`
	Candidate    *CandidateDTO `json:"candidate,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// CandidateDTO uses the field names of the browser's RTCIceCandidateInit.
type CandidateDTO struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func NewMessage(signal domain.Signal) Message {
	msg := Message{
		Type:         string(signal.Type),
		ConnectionID: signal.ConnectionID.String(),
		SDP:          signal.SDP,
		Error:        signal.Error,
	}
	if c := signal.Candidate; c != nil {
		msg.Candidate = &CandidateDTO{
			Candidate:        c.Candidate,
			SDPMid:           c.SDPMid,
			SDPMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		}
	}
	return msg
}

func (m Message) Signal() domain.Signal {
	signal := domain.Signal{
		Type:         domain.SignalType(m.Type),
		ConnectionID: domain.ConnectionID(m.ConnectionID),
		SDP:          m.SDP,
		Error:        m.Error,
	}
	if c := m.Candidate; c != nil {
		signal.Candidate = &domain.Candidate{
			Candidate:        c.Candidate,
			SDPMid:           c.SDPMid,
			SDPMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		}
	}
	return signal
}

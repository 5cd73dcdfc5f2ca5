package domain

type SignalType string

const (
	SignalStart     SignalType = "start"
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
	SignalClose     SignalType = "close"
	SignalError     SignalType = "error"
)

// Signal is one signaling message exchanged with a remote client, in either
// direction.
type Signal struct {
	Type         SignalType
	ConnectionID ConnectionID
	SDP          string
	Candidate    *Candidate
	Error        string
}

func NewDescriptionSignal(id ConnectionID, desc SessionDescription) Signal {
	t := SignalOffer
	if desc.Type == SDPAnswer {
		t = SignalAnswer
	}
	return Signal{Type: t, ConnectionID: id, SDP: desc.SDP}
}

func NewCandidateSignal(id ConnectionID, c Candidate) Signal {
	return Signal{Type: SignalCandidate, ConnectionID: id, Candidate: &c}
}

func NewErrorSignal(id ConnectionID, err error) Signal {
	return Signal{Type: SignalError, ConnectionID: id, Error: err.Error()}
}

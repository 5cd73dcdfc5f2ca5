package domain

import "fmt"

type Role int

const (
	RoleUndecided Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleUndecided:
		return "UNDECIDED"
	case RoleOfferer:
		return "OFFERER"
	case RoleAnswerer:
		return "ANSWERER"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

type Phase int

const (
	PhaseNew Phase = iota
	// role chosen, local offer not yet applied
	PhaseOfferer
	// role chosen, remote offer not yet applied
	PhaseAnswerer
	PhaseLocalSet
	PhaseRemoteSet
	PhaseStable
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "NEW"
	case PhaseOfferer:
		return "ROLE_OFFERER"
	case PhaseAnswerer:
		return "ROLE_ANSWERER"
	case PhaseLocalSet:
		return "LOCAL_SET"
	case PhaseRemoteSet:
		return "REMOTE_SET"
	case PhaseStable:
		return "STABLE"
	case PhaseClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("%d", int(p))
	}
}

// NegotiationState is a point-in-time copy of one connection's negotiation.
// Holders may keep it; it never aliases live state.
type NegotiationState struct {
	ConnectionID      ConnectionID
	Role              Role
	Phase             Phase
	LocalDescription  *SessionDescription
	RemoteDescription *SessionDescription
	PendingCandidates int
	CandidatesDrained bool
	InFlight          string
}

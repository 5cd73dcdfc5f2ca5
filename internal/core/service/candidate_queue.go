package service

import "github.com/Wyydra/rtcpeer/internal/core/domain"

// CandidateQueue buffers remote candidates that arrive before the remote
// description is applied. It drains exactly once; after that it stays drained
// and refuses new candidates, which the caller must forward directly.
type CandidateQueue struct {
	candidates []domain.Candidate
	drained    bool
}

func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{}
}

// Enqueue reports false once the queue has been drained.
func (q *CandidateQueue) Enqueue(c domain.Candidate) bool {
	if q.drained {
		return false
	}
	q.candidates = append(q.candidates, c)
	return true
}

// MarkReadyAndDrain returns the buffered candidates in arrival order the first
// time it is called, and nil afterwards.
func (q *CandidateQueue) MarkReadyAndDrain() []domain.Candidate {
	if q.drained {
		return nil
	}
	q.drained = true
	out := q.candidates
	q.candidates = nil
	return out
}

func (q *CandidateQueue) Drained() bool {
	return q.drained
}

func (q *CandidateQueue) Len() int {
	return len(q.candidates)
}

package domain

import "github.com/google/uuid"

// ConnectionID names one negotiated connection. It is always supplied by the
// caller; the core never generates one.
type ConnectionID string

func (id ConnectionID) String() string {
	return string(id)
}

type ClientID uuid.UUID

func NewClientID() ClientID {
	return ClientID(uuid.New())
}

func (id ClientID) String() string {
	return uuid.UUID(id).String()
}

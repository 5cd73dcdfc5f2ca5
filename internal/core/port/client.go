package port

import "github.com/Wyydra/rtcpeer/internal/core/domain"

type Client interface {
	ID() string
	SendSignal(signal domain.Signal) error
	Close() error
}

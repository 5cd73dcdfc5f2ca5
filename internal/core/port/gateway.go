package port

import (
	"context"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
)

type RealTimeGateway interface {
	SendSignal(ctx context.Context, id domain.ConnectionID, signal domain.Signal) error
}

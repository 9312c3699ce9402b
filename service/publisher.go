package service

import (
	"context"

	"github.com/nasa/GMSEC-API-sub012/message"
)

// Publisher is the connection a service publishes through. The connection
// manager satisfies it. A service owns its Publisher exclusively: it calls
// Initialize during setup and Cleanup during teardown.
type Publisher interface {
	Initialize(ctx context.Context) error
	Publish(ctx context.Context, msg *message.Message) error
	Cleanup(ctx context.Context) error
}

// PublisherFactory creates the Publisher for one service lifetime
type PublisherFactory func() (Publisher, error)

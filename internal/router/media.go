package router

import (
	"context"

	"github.com/nextlevelbuilder/dialer/internal/ari"
)

// MediaController is the subset of *ari.Client the router drives. Defining
// it here (rather than depending on the concrete client) lets tests drive
// the state machine against an in-memory fake with no socket involved.
type MediaController interface {
	Events() <-chan ari.Event

	Answer(ctx context.Context, channelID string) error
	Hangup(ctx context.Context, channelID string) error
	Play(ctx context.Context, channelID, mediaID string) (string, error)
	StartHold(ctx context.Context, channelID string) error
	StopHold(ctx context.Context, channelID string) error
	Originate(ctx context.Context, req ari.OriginateRequest) (string, error)
	BridgeCreate(ctx context.Context, bridgeType string) (string, error)
	BridgeAddChannel(ctx context.Context, bridgeID string, channelIDs ...string) error
	BridgeDestroy(ctx context.Context, bridgeID string) error
}

var _ MediaController = (*ari.Client)(nil)

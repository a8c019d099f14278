package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/dialer/internal/ari"
)

// fakeMedia is an in-memory MediaController recording every action the
// router issues, so tests can assert on call order/arguments without a
// media server.
type fakeMedia struct {
	mu sync.Mutex

	events chan ari.Event

	answerErr    map[string]error
	originateErr error
	bridgeAddErr error

	actions       []string
	nextChannelID int
	originated    []ari.OriginateRequest
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		events:    make(chan ari.Event, 16),
		answerErr: map[string]error{},
	}
}

var _ MediaController = (*fakeMedia)(nil)

func (m *fakeMedia) Events() <-chan ari.Event { return m.events }

func (m *fakeMedia) Answer(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "answer:"+channelID)
	return m.answerErr[channelID]
}

func (m *fakeMedia) Hangup(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "hangup:"+channelID)
	return nil
}

func (m *fakeMedia) Play(_ context.Context, channelID, mediaID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "play:"+channelID+":"+mediaID)
	return "pb-1", nil
}

func (m *fakeMedia) StartHold(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "hold-start:"+channelID)
	return nil
}

func (m *fakeMedia) StopHold(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "hold-stop:"+channelID)
	return nil
}

func (m *fakeMedia) Originate(_ context.Context, req ari.OriginateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.originated = append(m.originated, req)
	m.actions = append(m.actions, "originate:"+req.Endpoint)
	if m.originateErr != nil {
		return "", m.originateErr
	}
	m.nextChannelID++
	return fmt.Sprintf("agent-leg-%d", m.nextChannelID), nil
}

func (m *fakeMedia) BridgeCreate(_ context.Context, bridgeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "bridge-create:"+bridgeType)
	return "bridge-1", nil
}

func (m *fakeMedia) BridgeAddChannel(_ context.Context, bridgeID string, channelIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "bridge-add:"+bridgeID)
	return m.bridgeAddErr
}

func (m *fakeMedia) BridgeDestroy(_ context.Context, bridgeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, "bridge-destroy:"+bridgeID)
	return nil
}

func (m *fakeMedia) hasAction(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions {
		if len(a) >= len(prefix) && a[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

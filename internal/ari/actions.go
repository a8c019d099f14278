package ari

import (
	"context"
	"encoding/json"
	"fmt"
)

// Answer answers the given channel.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	_, err := c.call(ctx, MethodAnswer, map[string]string{"channel_id": channelID})
	if err != nil {
		return fmt.Errorf("ari: answer %s: %w", channelID, err)
	}
	return nil
}

// Hangup hangs up the given channel. Errors here are typically logged and
// swallowed by the router — the channel is already being torn down.
func (c *Client) Hangup(ctx context.Context, channelID string) error {
	_, err := c.call(ctx, MethodHangup, map[string]string{"channel_id": channelID})
	if err != nil {
		return fmt.Errorf("ari: hangup %s: %w", channelID, err)
	}
	return nil
}

// Play starts playback of mediaID (e.g. NoServiceSound) on a channel and
// returns the playback id, which the router does not track further —
// §4.5 tolerates the channel being torn down mid-playback.
func (c *Client) Play(ctx context.Context, channelID, mediaID string) (string, error) {
	raw, err := c.call(ctx, MethodPlay, map[string]string{"channel_id": channelID, "media": mediaID})
	if err != nil {
		return "", fmt.Errorf("ari: play %s on %s: %w", mediaID, channelID, err)
	}
	var result struct {
		PlaybackID string `json:"playback_id"`
	}
	_ = json.Unmarshal(raw, &result)
	return result.PlaybackID, nil
}

// StartHold starts on-hold media (server default music class) on a
// queued caller's channel.
func (c *Client) StartHold(ctx context.Context, channelID string) error {
	_, err := c.call(ctx, MethodStartHold, map[string]string{"channel_id": channelID})
	if err != nil {
		return fmt.Errorf("ari: hold start %s: %w", channelID, err)
	}
	return nil
}

// StopHold stops on-hold media.
func (c *Client) StopHold(ctx context.Context, channelID string) error {
	_, err := c.call(ctx, MethodStopHold, map[string]string{"channel_id": channelID})
	if err != nil {
		return fmt.Errorf("ari: hold stop %s: %w", channelID, err)
	}
	return nil
}

// OriginateRequest describes an outbound leg to an agent's endpoint
// (spec.md §4.5's routing loop: caller id, the routing app name, the
// "agent_leg" marker argument, and the fixed 15s answer timeout).
type OriginateRequest struct {
	Endpoint    string
	CallerID    string
	App         string
	Args        []string
	TimeoutSecs int
}

// Originate asks the media server to dial req.Endpoint, rate-limited so a
// burst of simultaneous re-queues cannot flood the control connection.
// It returns the new agent-leg channel id.
func (c *Client) Originate(ctx context.Context, req OriginateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ari: originate rate limit: %w", err)
	}

	timeout := req.TimeoutSecs
	if timeout <= 0 {
		timeout = AnswerTimeoutSeconds
	}

	raw, err := c.call(ctx, MethodOriginate, map[string]interface{}{
		"endpoint":  req.Endpoint,
		"caller_id": req.CallerID,
		"app":       req.App,
		"app_args":  req.Args,
		"timeout":   timeout,
	})
	if err != nil {
		return "", fmt.Errorf("ari: originate to %s: %w", req.Endpoint, err)
	}
	var result struct {
		ChannelID string `json:"channel_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("ari: decode originate response: %w", err)
	}
	return result.ChannelID, nil
}

// BridgeCreate creates a bridge of the given type (BridgeTypeMixing for
// every bridge this router ever opens) and returns its id.
func (c *Client) BridgeCreate(ctx context.Context, bridgeType string) (string, error) {
	raw, err := c.call(ctx, MethodBridgeCreate, map[string]string{"type": bridgeType})
	if err != nil {
		return "", fmt.Errorf("ari: bridge create: %w", err)
	}
	var result struct {
		BridgeID string `json:"bridge_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("ari: decode bridge create response: %w", err)
	}
	return result.BridgeID, nil
}

// BridgeAddChannel adds channelIDs to bridgeID.
func (c *Client) BridgeAddChannel(ctx context.Context, bridgeID string, channelIDs ...string) error {
	_, err := c.call(ctx, MethodBridgeAddChan, map[string]interface{}{
		"bridge_id":   bridgeID,
		"channel_ids": channelIDs,
	})
	if err != nil {
		return fmt.Errorf("ari: bridge add channel: %w", err)
	}
	return nil
}

// BridgeDestroy tears down a bridge.
func (c *Client) BridgeDestroy(ctx context.Context, bridgeID string) error {
	_, err := c.call(ctx, MethodBridgeDestroy, map[string]string{"bridge_id": bridgeID})
	if err != nil {
		return fmt.Errorf("ari: bridge destroy: %w", err)
	}
	return nil
}

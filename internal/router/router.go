// Package router implements the Call Router (C5): the explicit per-channel
// state machine of spec.md §4.5, dispatching on events pushed from the
// Channel Event Adapter rather than nesting callbacks (design note
// "Callback control flow → state machine").
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nextlevelbuilder/dialer/internal/ari"
	"github.com/nextlevelbuilder/dialer/internal/callcenter"
	"github.com/nextlevelbuilder/dialer/internal/store"
	"github.com/nextlevelbuilder/dialer/internal/telemetry"
)

// Router owns the single routing task for the process: it consumes media
// events, keyed by channelId, and serializes work items per channel.
type Router struct {
	repo    *callcenter.Repository
	media   MediaController
	appName string
	tel     *telemetry.Telemetry

	// wrapUp is how long an agent spends WRAPPING_UP after a call ends
	// before becoming AVAILABLE again. Zero means the transition is
	// immediate.
	wrapUp time.Duration

	reg *registry
}

// New builds a Router. appName is the application name supplied on
// origination requests (ARI_APP_NAME), matching the value the media
// server was told to route channels into.
func New(repo *callcenter.Repository, media MediaController, tel *telemetry.Telemetry, appName string, wrapUp time.Duration) *Router {
	return &Router{
		repo:    repo,
		media:   media,
		appName: appName,
		tel:     tel,
		wrapUp:  wrapUp,
		reg:     newRegistry(),
	}
}

// Run consumes the media event stream until ctx is done or the stream
// closes. A TRANSPORT_ERROR event is fatal to the process (spec.md §7):
// Run returns a non-nil error and the caller is expected to exit.
func (rt *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-rt.media.Events():
			if !ok {
				return fmt.Errorf("router: media event stream closed")
			}
			if err := rt.handleTransport(ev); err != nil {
				return err
			}
			rt.dispatch(ctx, ev)
		}
	}
}

func (rt *Router) handleTransport(ev ari.Event) error {
	switch ev.Type {
	case ari.EventTransportError:
		return fmt.Errorf("router: transport error: %w", ev.Err)
	case ari.EventTransportClose:
		return fmt.Errorf("router: transport closed")
	}
	return nil
}

func (rt *Router) dispatch(ctx context.Context, ev ari.Event) {
	switch ev.Type {
	case ari.EventChannelEnteredApp, ari.EventStasisStart:
		rt.reg.withLock(ev.ChannelID, func() { rt.handleEntered(ctx, ev) })
	case ari.EventChannelLeftApp:
		rt.reg.withLock(ev.ChannelID, func() { rt.handleLeft(ctx, ev.ChannelID) })
	case ari.EventChannelDestroyed:
		rt.reg.withLock(ev.ChannelID, func() { rt.handleDestroyed(ctx, ev.ChannelID) })
	default:
		slog.Debug("router: unhandled event", "type", ev.Type, "channel", ev.ChannelID)
	}
}

func (rt *Router) handleEntered(ctx context.Context, ev ari.Event) {
	if cc, ok := rt.reg.get(ev.ChannelID); ok && cc.Leg == legAgent {
		rt.handleAgentLegEntered(ctx, cc)
		return
	}
	rt.handleCallerEntered(ctx, ev)
}

// handleCallerEntered implements the entry path of spec.md §4.5.
func (rt *Router) handleCallerEntered(ctx context.Context, ev ari.Event) {
	cc := &callContext{
		ChannelID:    ev.ChannelID,
		Leg:          legCaller,
		CallerNumber: ev.Caller,
		State:        stateEntered,
		EnqueueTime:  time.Time{},
	}
	rt.reg.put(cc)

	if err := rt.media.Answer(ctx, cc.ChannelID); err != nil {
		slog.Warn("router: answer failed, terminating", "channel", cc.ChannelID, "error", err)
		rt.terminateCaller(ctx, cc)
		return
	}
	cc.State = stateAnswered

	callCenterID := ev.Variables["CALL_CENTER_ID"]
	queueID := ev.Variables["QUEUE_ID"]
	if callCenterID == "" || queueID == "" {
		slog.Warn("router: missing routing variables, terminating", "channel", cc.ChannelID)
		rt.terminateCaller(ctx, cc)
		return
	}
	cc.CallCenterID = callCenterID
	cc.QueueID = queueID

	active, err := rt.repo.IsQueueActive(ctx, callCenterID, queueID, time.Now())
	if err != nil || !active {
		if err != nil {
			slog.Warn("router: queue active check failed, treating as closed", "queue", queueID, "error", err)
		}
		if _, playErr := rt.media.Play(ctx, cc.ChannelID, ari.NoServiceSound); playErr != nil {
			slog.Warn("router: no-service prompt failed", "channel", cc.ChannelID, "error", playErr)
		}
		rt.terminateCaller(ctx, cc)
		return
	}

	q, err := rt.repo.GetQueueDetails(ctx, callCenterID, queueID)
	if err != nil {
		slog.Warn("router: queue details missing, terminating", "queue", queueID, "error", err)
		rt.terminateCaller(ctx, cc)
		return
	}

	if q.Strategy != store.StrategyRoundRobin {
		slog.Warn("router: unsupported strategy, terminating", "queue", queueID, "strategy", q.Strategy)
		rt.terminateCaller(ctx, cc)
		return
	}

	cc.State = stateSelecting
	rt.routeRoundRobin(ctx, cc)
}

// routeRoundRobin is the routing loop of spec.md §4.5.
func (rt *Router) routeRoundRobin(ctx context.Context, cc *callContext) {
	spanCtx, span := rt.tel.StartRouteCall(ctx, cc.CallCenterID, cc.QueueID)
	defer func() {
		rt.tel.RecordOutcome(spanCtx, span, outcomeFor(cc), cc.SelectedAgent)
	}()

	agentID, err := rt.repo.Select(spanCtx, cc.CallCenterID, cc.QueueID, time.Now())
	if err != nil {
		// STORE_ERROR during selection is treated as "no agent now".
		slog.Warn("router: selection failed, enqueueing", "queue", cc.QueueID, "error", err)
		rt.enqueueAndHold(spanCtx, cc)
		return
	}
	if agentID == callcenter.NoAgent {
		rt.enqueueAndHold(spanCtx, cc)
		return
	}

	agent, err := rt.repo.GetAgentDetails(spanCtx, cc.CallCenterID, agentID)
	if err != nil || agent.Endpoint == "" {
		// Failed attempt: do not mutate agent status.
		slog.Warn("router: selected agent has no endpoint, re-enqueueing", "agent", agentID, "error", err)
		rt.enqueueAndHold(spanCtx, cc)
		return
	}

	rt.attemptOrigination(spanCtx, cc, agent)
}

// attemptOrigination sets the agent RINGING and requests the origination;
// it is also used by onAgentAvailable, which already knows the agent id
// and skips the selector.
func (rt *Router) attemptOrigination(ctx context.Context, cc *callContext, agent *store.Agent) {
	if err := rt.repo.SetAgentStatus(ctx, cc.CallCenterID, agent.ID, store.AgentRinging, callcenter.StatusContext{BoundChannelID: cc.ChannelID}); err != nil {
		slog.Warn("router: set agent ringing failed, re-enqueueing", "agent", agent.ID, "error", err)
		rt.enqueueAndHold(ctx, cc)
		return
	}
	cc.SelectedAgent = agent.ID
	cc.State = stateOriginating

	agentChannelID, err := rt.media.Originate(ctx, ari.OriginateRequest{
		Endpoint:    agent.Endpoint,
		CallerID:    cc.CallerNumber,
		App:         rt.appName,
		Args:        []string{ari.AgentLegArg},
		TimeoutSecs: ari.AnswerTimeoutSeconds,
	})
	if err != nil {
		slog.Warn("router: origination failed, restoring agent", "agent", agent.ID, "error", err)
		rt.restoreAgentAvailable(ctx, cc.CallCenterID, agent.ID)
		rt.enqueueAndHold(ctx, cc)
		return
	}

	agentCC := &callContext{
		ChannelID:     agentChannelID,
		Leg:           legAgent,
		CallCenterID:  cc.CallCenterID,
		QueueID:       cc.QueueID,
		PairedChannel: cc.ChannelID,
		SelectedAgent: agent.ID,
		State:         stateAgentOriginated,
	}
	rt.reg.put(agentCC)
	cc.PairedChannel = agentChannelID
}

// handleAgentLegEntered implements the "agent leg enters app" outcome.
func (rt *Router) handleAgentLegEntered(ctx context.Context, agentCC *callContext) {
	if err := rt.media.Answer(ctx, agentCC.ChannelID); err != nil {
		slog.Warn("router: agent leg answer failed", "channel", agentCC.ChannelID, "error", err)
		if callerCC, ok := rt.reg.get(agentCC.PairedChannel); ok {
			rt.hangupAndRemove(ctx, callerCC)
		}
		rt.restoreAgentAvailable(ctx, agentCC.CallCenterID, agentCC.SelectedAgent)
		rt.reg.remove(agentCC.ChannelID)
		return
	}
	agentCC.State = stateAgentAnswered
	rt.bridgeLegs(ctx, agentCC)
}

// bridgeLegs implements the "agent leg answers" outcome.
func (rt *Router) bridgeLegs(ctx context.Context, agentCC *callContext) {
	callerCC, ok := rt.reg.get(agentCC.PairedChannel)
	if !ok {
		slog.Warn("router: caller context gone before bridge", "agent_channel", agentCC.ChannelID)
		rt.restoreAgentAvailable(ctx, agentCC.CallCenterID, agentCC.SelectedAgent)
		rt.reg.remove(agentCC.ChannelID)
		return
	}

	bridgeID, err := rt.media.BridgeCreate(ctx, ari.BridgeTypeMixing)
	if err != nil {
		slog.Warn("router: bridge create failed", "error", err)
		rt.hangupAndRemove(ctx, callerCC)
		rt.hangupAndRemove(ctx, agentCC)
		rt.restoreAgentAvailable(ctx, agentCC.CallCenterID, agentCC.SelectedAgent)
		return
	}

	if err := rt.media.BridgeAddChannel(ctx, bridgeID, callerCC.ChannelID, agentCC.ChannelID); err != nil {
		slog.Warn("router: bridge add channel failed", "error", err)
		if destroyErr := rt.media.BridgeDestroy(ctx, bridgeID); destroyErr != nil {
			slog.Warn("router: bridge destroy after failed add", "error", destroyErr)
		}
		rt.hangupAndRemove(ctx, callerCC)
		rt.hangupAndRemove(ctx, agentCC)
		rt.restoreAgentAvailable(ctx, agentCC.CallCenterID, agentCC.SelectedAgent)
		return
	}

	callerCC.State = stateBridged
	callerCC.BridgeID = bridgeID
	agentCC.State = stateAgentBridged
	agentCC.BridgeID = bridgeID
	if err := rt.repo.SetAgentStatus(ctx, agentCC.CallCenterID, agentCC.SelectedAgent, store.AgentOnCall, callcenter.StatusContext{BoundChannelID: callerCC.ChannelID}); err != nil {
		slog.Warn("router: set agent on-call failed", "agent", agentCC.SelectedAgent, "error", err)
	}
}

func (rt *Router) handleLeft(ctx context.Context, channelID string) {
	cc, ok := rt.reg.get(channelID)
	if !ok {
		return
	}
	switch cc.Leg {
	case legCaller:
		rt.handleCallerExit(ctx, cc)
	case legAgent:
		rt.handleAgentLegExit(ctx, cc)
	}
}

func (rt *Router) handleDestroyed(ctx context.Context, channelID string) {
	cc, ok := rt.reg.get(channelID)
	if !ok {
		return
	}
	if cc.Leg == legAgent && cc.State != stateAgentBridged {
		// Agent leg destroyed before bridge, caller still live.
		rt.restoreAgentAvailable(ctx, cc.CallCenterID, cc.SelectedAgent)
		if callerCC, ok := rt.reg.get(cc.PairedChannel); ok && callerCC.State != stateTerminated {
			rt.enqueueAndHold(ctx, callerCC)
		}
	}
	rt.reg.remove(channelID)
}

// handleCallerExit implements caller-leg exit, spec.md §4.5.
func (rt *Router) handleCallerExit(ctx context.Context, cc *callContext) {
	if _, err := rt.repo.RemoveCallFromQueue(ctx, cc.CallCenterID, cc.QueueID, cc.ChannelID); err != nil {
		slog.Warn("router: remove call from queue failed", "channel", cc.ChannelID, "error", err)
	}
	if cc.State == stateBridged && cc.SelectedAgent != "" {
		rt.beginWrapUp(ctx, cc.CallCenterID, cc.SelectedAgent)
		if agentCC, ok := rt.reg.get(cc.PairedChannel); ok {
			_ = rt.media.Hangup(ctx, agentCC.ChannelID)
		}
	}
	cc.State = stateTerminated
	rt.reg.remove(cc.ChannelID)
}

// handleAgentLegExit mirrors handleCallerExit for the agent leg.
func (rt *Router) handleAgentLegExit(ctx context.Context, cc *callContext) {
	wasBridged := cc.State == stateAgentBridged
	if callerCC, ok := rt.reg.get(cc.PairedChannel); ok {
		if wasBridged {
			_ = rt.media.Hangup(ctx, callerCC.ChannelID)
			callerCC.State = stateTerminated
			rt.reg.remove(callerCC.ChannelID)
		}
	}
	if wasBridged {
		rt.beginWrapUp(ctx, cc.CallCenterID, cc.SelectedAgent)
	}
	rt.reg.remove(cc.ChannelID)
}

// beginWrapUp moves an agent to WRAPPING_UP and, after rt.wrapUp elapses,
// to AVAILABLE, then drives the waiting-call dispatch of onAgentAvailable
// (Open Question (b)).
func (rt *Router) beginWrapUp(ctx context.Context, callCenterID, agentID string) {
	if err := rt.repo.SetAgentStatus(ctx, callCenterID, agentID, store.AgentWrappingUp, callcenter.StatusContext{WrapDuration: rt.wrapUp}); err != nil {
		slog.Warn("router: set wrapping-up failed", "agent", agentID, "error", err)
	}
	if rt.wrapUp <= 0 {
		rt.restoreAgentAvailable(context.WithoutCancel(ctx), callCenterID, agentID)
		return
	}
	go func() {
		time.Sleep(rt.wrapUp)
		rt.restoreAgentAvailable(context.WithoutCancel(ctx), callCenterID, agentID)
	}()
}

// restoreAgentAvailable sets the agent AVAILABLE and drives the
// waiting-call dispatch mandated by Open Question (b).
func (rt *Router) restoreAgentAvailable(ctx context.Context, callCenterID, agentID string) {
	if agentID == "" {
		return
	}
	if err := rt.repo.SetAgentStatus(ctx, callCenterID, agentID, store.AgentAvailable, callcenter.StatusContext{}); err != nil {
		slog.Warn("router: restore available failed", "agent", agentID, "error", err)
		return
	}
	rt.onAgentAvailable(ctx, callCenterID, agentID)
}

// onAgentAvailable implements the de-queue discipline of spec.md §4.5:
// it walks the queues the newly available agent is logged into, in
// lexicographic order, pops the head waiting call of each, and originates
// that call to this agent, stopping at the first queue with a waiting
// call. The round-robin selector is not run here: the call always goes to
// the agent that became available, and the rotation pointer is not moved.
func (rt *Router) onAgentAvailable(ctx context.Context, callCenterID, agentID string) {
	agent, err := rt.repo.GetAgentDetails(ctx, callCenterID, agentID)
	if err != nil {
		slog.Warn("router: agent lookup failed on availability", "agent", agentID, "error", err)
		return
	}
	queues := append([]string(nil), agent.LoggedInQueues...)
	sort.Strings(queues)

	for _, queueID := range queues {
		waiting, err := rt.repo.GetNextCallFromQueue(ctx, callCenterID, queueID)
		if err != nil {
			slog.Warn("router: pop waiting call failed", "queue", queueID, "error", err)
			continue
		}
		if waiting == nil {
			continue
		}
		callerCC, ok := rt.reg.get(waiting.ChannelID)
		if !ok {
			slog.Warn("router: waiting call has no live channel context, dropping", "channel", waiting.ChannelID)
			continue
		}
		callerCC.State = stateOriginating
		if err := rt.media.StopHold(ctx, callerCC.ChannelID); err != nil {
			slog.Warn("router: stop hold failed", "channel", callerCC.ChannelID, "error", err)
		}
		rt.attemptOrigination(ctx, callerCC, agent)
		return
	}
}

// enqueueAndHold implements the re-queue discipline of spec.md §4.5: the
// original enqueueTime is preserved if already carried, the record is
// appended to the tail (invariant 3 is kept by removing any prior record
// for this channel first), and on-hold media is started.
func (rt *Router) enqueueAndHold(ctx context.Context, cc *callContext) {
	if cc.EnqueueTime.IsZero() {
		cc.EnqueueTime = time.Now()
	}
	if _, err := rt.repo.RemoveCallFromQueue(ctx, cc.CallCenterID, cc.QueueID, cc.ChannelID); err != nil {
		slog.Warn("router: pre-enqueue dedupe failed", "channel", cc.ChannelID, "error", err)
	}
	rec := store.WaitingCall{
		ChannelID:    cc.ChannelID,
		CallerNumber: cc.CallerNumber,
		EnqueueTime:  cc.EnqueueTime.UnixMilli(),
	}
	if err := rt.repo.AddCallToQueue(ctx, cc.CallCenterID, cc.QueueID, rec); err != nil {
		slog.Warn("router: enqueue failed", "channel", cc.ChannelID, "error", err)
	}
	if err := rt.media.StartHold(ctx, cc.ChannelID); err != nil {
		slog.Warn("router: start hold failed", "channel", cc.ChannelID, "error", err)
	}
	cc.State = stateQueued
}

func (rt *Router) terminateCaller(ctx context.Context, cc *callContext) {
	rt.hangupAndRemove(ctx, cc)
}

func (rt *Router) hangupAndRemove(ctx context.Context, cc *callContext) {
	if err := rt.media.Hangup(ctx, cc.ChannelID); err != nil {
		slog.Debug("router: hangup during teardown", "channel", cc.ChannelID, "error", err)
	}
	cc.State = stateTerminated
	rt.reg.remove(cc.ChannelID)
}

func outcomeFor(cc *callContext) string {
	switch cc.State {
	case stateBridged, stateBridging:
		return "bridged"
	case stateQueued:
		return "queued"
	case stateOriginating:
		return "originating"
	case stateTerminated:
		return "deflected"
	default:
		return "origination_failed"
	}
}

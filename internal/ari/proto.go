// Package ari implements the Channel Event Adapter (C6): a client for the
// media server's event-and-request control interface (spec.md §6),
// translating inbound channel events into router inputs and exposing the
// outbound actions (answer, hang up, play, hold, originate, bridge) the
// router drives.
//
// The control connection multiplexes both directions over one
// WebSocket: the media server pushes unsolicited channel events, and the
// adapter sends request frames (answer, originate, ...) that receive a
// matching response frame by request id — the same request/response
// shape the rest of this lineage's gateway clients use over their
// control sockets.
package ari

// Event names pushed from the media server to this adapter.
const (
	EventChannelEnteredApp = "ChannelEnteredApp"
	EventChannelLeftApp    = "ChannelLeftApp"
	EventChannelDestroyed  = "ChannelDestroyed"
	EventStasisStart       = "StasisStart"
	EventChannelStateChange = "ChannelStateChange"
	EventTransportError    = "__transport_error"
	EventTransportClose    = "__transport_close"
)

// Request method names this adapter issues to the media server.
const (
	MethodAnswer          = "channels.answer"
	MethodHangup          = "channels.hangup"
	MethodPlay            = "channels.play"
	MethodStartHold       = "channels.holdStart"
	MethodStopHold        = "channels.holdStop"
	MethodOriginate       = "channels.originate"
	MethodBridgeCreate    = "bridges.create"
	MethodBridgeAddChan   = "bridges.addChannel"
	MethodBridgeDestroy   = "bridges.destroy"
)

// Fixed media ids (spec.md §6).
const (
	NoServiceSound  = "sound:ss-noservice"
	DefaultHoldMOH  = "" // empty selects the server's default music class
)

// BridgeTypeMixing is the only bridge type the router ever requests.
const BridgeTypeMixing = "mixing"

// AgentLegArg marks an originated channel as the agent leg of a routed
// call, per spec.md §4.5's routing loop step.
const AgentLegArg = "agent_leg"

// AnswerTimeoutSeconds is the fixed origination answer timeout (spec.md §5).
const AnswerTimeoutSeconds = 15

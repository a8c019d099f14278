package store

// QueueStatus is the advisory open/closed flag on a Queue record. The
// authoritative admission decision is always the timing evaluation against
// Queue.Timings, not this field.
type QueueStatus string

const (
	QueueOpen   QueueStatus = "OPEN"
	QueueClosed QueueStatus = "CLOSED"
)

// Strategy is the queue's configured distribution algorithm.
type Strategy string

const (
	StrategyRoundRobin Strategy = "ROUND_ROBIN"
	StrategyRingAll    Strategy = "RINGALL" // reserved, not implemented
)

// AgentStatus is the agent state-machine state (spec.md §4.3).
type AgentStatus string

const (
	AgentLoggedOut  AgentStatus = "LOGGED_OUT"
	AgentAvailable  AgentStatus = "AVAILABLE"
	AgentRinging    AgentStatus = "RINGING"
	AgentOnCall     AgentStatus = "ON_CALL"
	AgentWrappingUp AgentStatus = "WRAPPING_UP"
)

// Queue is the record held at callcenter:{cc}:queue:{q}.
type Queue struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Strategy Strategy    `json:"strategy"`
	Timings  string      `json:"timings"`
	Status   QueueStatus `json:"status"`
}

// Agent is the record held at callcenter:{cc}:agent:{a}. LoggedInQueues is
// JSON-encoded by the repository before being written into its hash field
// (BoundChannelID is written as plain text); no other component sees the
// raw text.
type Agent struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Endpoint       string      `json:"endpoint"`
	ShiftTimings   string      `json:"shiftTimings"`
	Status         AgentStatus `json:"status"`
	LoggedInQueues []string    `json:"loggedInQueues"`
	BoundChannelID string      `json:"boundChannelId,omitempty"`
}

// WaitingCall is one record in a queue's FIFO waiting sequence.
type WaitingCall struct {
	ChannelID    string `json:"channelId"`
	CallerNumber string `json:"callerNumber"`
	EnqueueTime  int64  `json:"enqueueTime"` // epoch ms
}

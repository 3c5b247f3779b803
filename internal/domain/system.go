package domain

// SystemEventKind enumerates non-message events routed to the view side
// channel. System events never enter a thread's message list.
type SystemEventKind string

const (
	SystemTypingOn      SystemEventKind = "typing_on"
	SystemTypingOff     SystemEventKind = "typing_off"
	SystemAgentAssigned SystemEventKind = "agent_assigned"
)

// SystemEvent is a typing indicator or banner notification.
type SystemEvent struct {
	Kind      SystemEventKind
	ThreadID  string
	AgentName string
}

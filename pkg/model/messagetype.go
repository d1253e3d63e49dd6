package model

type MessageType string

// messages pushed on the streaming channel of a task
const (
	MTConnected MessageType = "connected"
	MTProgress  MessageType = "progress"
	MTSuccess   MessageType = "success"
	MTError     MessageType = "error"
	MTPing      MessageType = "ping" // client keep-alive, no semantics
)

// StreamMessage is the envelope of every message on the streaming channel.
// Only the fields belonging to Type are populated.
type StreamMessage struct {
	Type     MessageType `json:"type"`
	TaskID   string      `json:"task_id,omitempty"`
	Stage    string      `json:"stage,omitempty"`
	Progress int         `json:"progress,omitempty"`
	Message  string      `json:"message,omitempty"`
	SessionInfo
	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

func (m *StreamMessage) ToProgress() Progress {
	return Progress{
		Stage:   m.Stage,
		Percent: m.Progress,
		Message: m.Message,
		Session: m.SessionInfo,
	}
}

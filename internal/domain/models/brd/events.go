package brd

// Real-time event names carried in {"event": ..., "data": ...} frames.
const (
	EventJoinProject      = "join-project"
	EventLeaveProject     = "leave-project"
	EventChatMessage      = "chat-message"
	EventAcceptSuggestion = "accept-suggestion"

	EventAIResponse      = "ai-response"
	EventDocumentUpdated = "document-updated"
	EventError           = "error"
	EventNotice          = "notice"
	EventJoined          = "joined"
	EventLeft            = "left"
)

// Notice kinds.
const (
	NoticeScraping     = "scraping"
	NoticeScrapeFailed = "scrape-failed"
)

// AIResponsePayload is sent to the connection that asked.
type AIResponsePayload struct {
	Message        string       `json:"message"`
	Suggestions    []Suggestion `json:"suggestions"`
	DocumentUpdate *Content     `json:"documentUpdate"`
}

// DocumentUpdatedPayload is broadcast to the whole project room.
type DocumentUpdatedPayload struct {
	Document *Document `json:"document"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type NoticePayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// RoomPayload acknowledges join-project and leave-project.
type RoomPayload struct {
	ProjectID string `json:"projectId"`
}

// ChatMessagePayload is the data of an incoming chat-message.
type ChatMessagePayload struct {
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"` // Client clock, informational
}

// AcceptSuggestionPayload is the data of an incoming accept-suggestion.
type AcceptSuggestionPayload struct {
	ProjectID  string     `json:"projectId"`
	Suggestion Suggestion `json:"suggestion"`
}

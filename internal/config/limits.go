package config

const (
	// MaxProjectNameLength is the maximum length for project names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxProjectNameLength = 255

	// MaxProjectDescriptionLength caps the free-text project brief.
	MaxProjectDescriptionLength = 20000

	// MaxChatMessageLength caps a single chat message sent over the socket.
	MaxChatMessageLength = 10000

	// ContextCharBudget is the per-source character budget applied to
	// uploaded documents and scraped pages before they enter a prompt.
	ContextCharBudget = 15000

	// FallbackMessageLimit caps the raw model text returned as the reply
	// when the model output cannot be decoded.
	FallbackMessageLimit = 2000

	// MaxUploadSize is the largest accepted upload body (25MB).
	MaxUploadSize = 25 << 20

	// DefaultHistoryLimit is the page size for conversation history.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit bounds the history page size.
	MaxHistoryLimit = 200
)

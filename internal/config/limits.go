package config

const (
	// MaxConversationTitleLength is the maximum length for conversation titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxConversationTitleLength = 255

	// HistoryPageSize is the number of conversations returned by one list call.
	HistoryPageSize = 25

	// MaxRequestBodyBytes bounds inbound JSON bodies. Base64 image parts make
	// turn requests much larger than plain chat text.
	MaxRequestBodyBytes = 32 << 20

	// TitleMaxTokens and TitleTemperature parameterize title generation.
	TitleMaxTokens   = 64
	TitleTemperature = 1.0
)

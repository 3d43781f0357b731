package model

// ================ Config ================

// MemoryConfig bounds the per-session conversation window.
type MemoryConfig struct {
	TokenBudget int `envconfig:"MEMORY_TOKEN_BUDGET" default:"4096"`
	// SummaryRatio is the fraction of the budget the live window is reduced
	// to when summarization fires, leaving headroom for the next turn.
	SummaryRatio float64 `envconfig:"MEMORY_SUMMARY_RATIO" default:"0.7"`
	// SummaryReserve is the token allowance for the summary text itself when
	// deciding how many old messages to fold.
	SummaryReserve int `envconfig:"MEMORY_SUMMARY_RESERVE" default:"256"`
	// FallbackChars caps the mechanical summary used when the completion
	// service is unavailable during summarization.
	FallbackChars int `envconfig:"MEMORY_FALLBACK_CHARS" default:"500"`
}

// ResponseModelConfig configures the completion call for reply generation.
type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"300"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.7"`
	// TimeoutSeconds bounds a single completion call.
	TimeoutSeconds int `envconfig:"RESPONSE_TIMEOUT_SECONDS" default:"15"`
}

// PersonaConfig identifies the character the agent speaks as.
type PersonaConfig struct {
	Name  string `envconfig:"PERSONA_NAME" default:"Adam"`
	Title string `envconfig:"PERSONA_TITLE" default:"Sage of the Northern Isles"`
	// ApologyReply is the fixed in-persona reply used when generation fails.
	ApologyReply string `envconfig:"PERSONA_APOLOGY" default:"I apologize, but something went wrong while processing your message. Could you try again?"`
}

// KnowledgeConfig configures the knowledge resolution policy.
type KnowledgeConfig struct {
	// Entries overrides the built-in topic index, as "topic=fact;topic=fact".
	Entries string `envconfig:"KNOWLEDGE_ENTRIES"`
	// LookupTimeoutSeconds bounds one external lookup call.
	LookupTimeoutSeconds int `envconfig:"KNOWLEDGE_LOOKUP_TIMEOUT_SECONDS" default:"3"`
}

// ConversationConfig controls the Redis transcript mirror.
type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"15m"`
}

package domain

// IntentUnknown is the reserved intent meaning no actionable intent was
// found in the utterance. It never produces an Action.
const IntentUnknown = "unknown"

// ParseSource tags which interpreter produced a ParseResult.
type ParseSource string

const (
	// ParseSourceRules marks results produced by the pattern rule table.
	ParseSourceRules ParseSource = "rules"
	// ParseSourceLLM marks results produced by the fallback interpreter.
	ParseSourceLLM ParseSource = "llm"
)

// ParseResult is the interpretation of a single utterance. It is produced
// fresh per utterance and never persisted.
type ParseResult struct {
	Intent     string         `json:"intent"`
	Args       map[string]any `json:"args"`
	Confidence float64        `json:"confidence"`
	Source     ParseSource    `json:"source"`
}

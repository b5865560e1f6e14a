// Package parser interprets free-text utterances into typed intents.
// Rule matching is deterministic and side-effect free; an optional
// fallback interpreter handles what the rule table cannot.
package parser

import (
	"context"
	"strings"

	"github.com/axionhq/axion/internal/domain"
)

// Mode selects how the parser combines the rule table with the fallback.
type Mode string

const (
	// ModeRules uses the rule table only.
	ModeRules Mode = "rules"
	// ModeHybrid prefers rules and falls back for low-confidence matches.
	ModeHybrid Mode = "hybrid"
	// ModeLLM prefers the fallback interpreter whenever one is configured.
	ModeLLM Mode = "llm"
)

// Valid reports whether m is a recognized parser mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeRules, ModeHybrid, ModeLLM:
		return true
	}
	return false
}

// Fallback is the contract for the opaque best-effort interpreter. It may
// be slow or unreliable but must always return a well-formed ParseResult
// tagged with source "llm"; it never errors.
type Fallback interface {
	Parse(ctx context.Context, utterance string) domain.ParseResult
}

// Config holds parser thresholds. ConfidenceLow must not exceed
// ConfidenceHigh; both lie in [0, 1].
type Config struct {
	Mode           Mode
	ConfidenceLow  float64
	ConfidenceHigh float64
}

// Parser maps utterances to ParseResults.
type Parser struct {
	cfg      Config
	fallback Fallback
}

// New creates a parser. fallback may be nil, in which case hybrid and llm
// modes degrade to the best rule match.
func New(cfg Config, fallback Fallback) *Parser {
	return &Parser{cfg: cfg, fallback: fallback}
}

// Interpret maps an utterance to an intent, arguments, and confidence.
// A rule match at or above the high threshold is returned immediately,
// bypassing the fallback regardless of mode. An empty utterance yields
// the unknown intent.
func (p *Parser) Interpret(ctx context.Context, utterance string) domain.ParseResult {
	text := strings.TrimSpace(utterance)

	res, matched := matchRules(text)
	if matched && res.Confidence >= p.cfg.ConfidenceHigh {
		return res
	}

	switch p.cfg.Mode {
	case ModeHybrid:
		if matched && res.Confidence >= p.cfg.ConfidenceLow {
			return res
		}
		if p.fallback != nil {
			return p.fallback.Parse(ctx, utterance)
		}
	case ModeLLM:
		if p.fallback != nil {
			return p.fallback.Parse(ctx, utterance)
		}
	}

	// Rules-only mode, or no fallback configured: return the best rule
	// match even below the low threshold.
	if matched {
		return res
	}
	return Unknown(utterance)
}

// Unknown returns the sentinel result for utterances with no actionable
// intent.
func Unknown(utterance string) domain.ParseResult {
	return domain.ParseResult{
		Intent:     domain.IntentUnknown,
		Args:       map[string]any{"utterance": utterance},
		Confidence: 0,
		Source:     domain.ParseSourceRules,
	}
}

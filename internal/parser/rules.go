package parser

import (
	"regexp"

	"github.com/axionhq/axion/internal/domain"
)

// rule is one entry in the ordered pattern table. The first rule whose
// pattern matches wins, so more specific rules must come before more
// general ones (file operations with captured names before bare "ls").
type rule struct {
	pattern    *regexp.Regexp
	intent     string
	extract    func(m []string) map[string]any
	confidence float64
}

func noArgs([]string) map[string]any { return map[string]any{} }

// Patterns are case-insensitive but match against the trimmed original
// utterance, so captured groups keep the user's casing verbatim.
var rules = []rule{
	{
		pattern:    regexp.MustCompile(`(?i)^(what time is it|current time|time|what's the time)\??$`),
		intent:     "system.time",
		extract:    noArgs,
		confidence: 1.0,
	},
	{
		pattern: regexp.MustCompile(`(?i)^write file ([\w.\-]+):\s*(.+)$`),
		intent:  "files.write",
		extract: func(m []string) map[string]any {
			return map[string]any{"filename": m[1], "content": m[2]}
		},
		confidence: 0.95,
	},
	{
		pattern: regexp.MustCompile(`(?i)^read file ([\w.\-]+)$`),
		intent:  "files.read",
		extract: func(m []string) map[string]any {
			return map[string]any{"filename": m[1]}
		},
		confidence: 0.95,
	},
	{
		pattern: regexp.MustCompile(`(?i)^delete file ([\w.\-]+)$`),
		intent:  "files.delete",
		extract: func(m []string) map[string]any {
			return map[string]any{"filename": m[1]}
		},
		confidence: 0.95,
	},
	{
		pattern: regexp.MustCompile(`(?i)^copy file ([\w.\-]+) to ([\w.\-]+)$`),
		intent:  "files.copy",
		extract: func(m []string) map[string]any {
			return map[string]any{"source": m[1], "dest": m[2]}
		},
		confidence: 0.95,
	},
	{
		pattern: regexp.MustCompile(`(?i)^move file ([\w.\-]+) to ([\w.\-]+)$`),
		intent:  "files.move",
		extract: func(m []string) map[string]any {
			return map[string]any{"source": m[1], "dest": m[2]}
		},
		confidence: 0.95,
	},
	{
		pattern: regexp.MustCompile(`(?i)^(list files|ls|dir|show files)(\s+in\s+([\w./\-]+))?$`),
		intent:  "files.list",
		extract: func(m []string) map[string]any {
			return map[string]any{"path": m[3]}
		},
		confidence: 0.90,
	},
	{
		pattern: regexp.MustCompile(`(?i)^open (chrome|firefox|safari|edge|browser|notepad|calculator|terminal)$`),
		intent:  "apps.open",
		extract: func(m []string) map[string]any {
			return map[string]any{"app": m[1]}
		},
		confidence: 0.90,
	},
}

// matchRules evaluates the rule table in order against the trimmed
// utterance. Returns the first match, or ok=false when nothing matched.
func matchRules(text string) (domain.ParseResult, bool) {
	if text == "" {
		return domain.ParseResult{}, false
	}
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return domain.ParseResult{
			Intent:     r.intent,
			Args:       r.extract(m),
			Confidence: r.confidence,
			Source:     domain.ParseSourceRules,
		}, true
	}
	return domain.ParseResult{}, false
}

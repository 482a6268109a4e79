package service

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/switchyardlabs/switchyard/internal/domain/handoff"
)

// HandoffParser extracts a handoff declaration from raw agent output.
// Structured results are preferred; this parser exists for backends that
// only return text.
type HandoffParser interface {
	Parse(text string) *handoff.Declaration
}

// BlockParser parses the legacy fixed handoff block:
//
//	To: security
//	Reason: firewall rules need review
//	Context:
//	- finding: open port 3389
//	- hosts: ["gw1.example.com", "gw2.example.com"]
//
// The block is located by pattern matching, not semantic interpretation.
// Continuation lines (indented, no "key:" bullet) are joined onto the
// previous key's value; values that look like JSON list/object literals
// are decoded.
type BlockParser struct{}

// NewBlockParser creates a BlockParser.
func NewBlockParser() *BlockParser {
	return &BlockParser{}
}

var (
	toLine      = regexp.MustCompile(`(?i)^to:\s*(\S+)\s*$`)
	reasonLine  = regexp.MustCompile(`(?i)^reason:\s*(.+)$`)
	contextLine = regexp.MustCompile(`(?i)^context:\s*$`)
	bulletLine  = regexp.MustCompile(`^[-*]\s+([A-Za-z0-9_.-]+):\s*(.*)$`)
)

// Parse returns the declaration found in text, or nil when no handoff
// block is present. Absence of a block means the chain terminates
// normally; it is never an error.
func (p *BlockParser) Parse(text string) *handoff.Declaration {
	lines := strings.Split(text, "\n")

	start := -1
	var toAgent string
	for i, line := range lines {
		if m := toLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			// The block requires a Reason line directly after To.
			if i+1 < len(lines) {
				if rm := reasonLine.FindStringSubmatch(strings.TrimSpace(lines[i+1])); rm != nil {
					start = i
					toAgent = m[1]
					break
				}
			}
		}
	}
	if start == -1 {
		return nil
	}

	reason := reasonLine.FindStringSubmatch(strings.TrimSpace(lines[start+1]))[1]

	decl := &handoff.Declaration{
		ToAgent:   strings.ToLower(toAgent),
		Reason:    strings.TrimSpace(reason),
		Timestamp: time.Now().UTC(),
	}

	rest := lines[start+2:]
	if len(rest) == 0 || !contextLine.MatchString(strings.TrimSpace(rest[0])) {
		return decl
	}

	decl.Context = parseContextBullets(rest[1:])
	return decl
}

// parseContextBullets parses the bullet list into a flat key->value map.
func parseContextBullets(lines []string) map[string]any {
	ctx := make(map[string]any)
	var lastKey string

	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			break
		}

		if m := bulletLine.FindStringSubmatch(trimmed); m != nil {
			lastKey = m[1]
			ctx[lastKey] = decodeValue(strings.TrimSpace(m[2]))
			continue
		}

		// Indented continuation line joins the previous value.
		if lastKey != "" && len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t') {
			if prev, ok := ctx[lastKey].(string); ok {
				ctx[lastKey] = prev + " " + trimmed
			}
			continue
		}

		// A non-bullet, non-indented line ends the block.
		break
	}

	if len(ctx) == 0 {
		return nil
	}
	return ctx
}

// decodeValue attempts to decode list/object literals, falling back to the
// raw string.
func decodeValue(v string) any {
	if strings.HasPrefix(v, "[") || strings.HasPrefix(v, "{") {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			return decoded
		}
	}
	return v
}

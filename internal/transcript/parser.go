// ABOUTME: Best-effort parser turning a flat conversation transcript into turns
// ABOUTME: Lines look like: Speaker: "content" [category/reaction/tone]

package transcript

import (
	"log/slog"
	"strings"
)

// Default metadata values used when a line carries no bracketed block.
const (
	DefaultCategory = "unknown"
	DefaultReaction = "independent"
	DefaultTone     = "neutral"
)

// Turn is one attributed utterance recovered from a transcript line.
// Turns are ephemeral: recomputed per classification call, never persisted.
type Turn struct {
	Speaker       string
	Content       string
	Length        int
	Category      string
	Reaction      string
	EmotionalTone string
}

// quote characters accepted around turn content. Curly quotes show up when
// transcripts round-trip through word processors.
const quoteChars = `"` + "“”"

// Parse converts a newline-separated transcript into ordered turns.
// Parsing is best-effort: a line that cannot be parsed is dropped with a
// warning, never an error. An empty transcript yields an empty slice, which
// every downstream consumer treats as valid initial state.
func Parse(raw string, logger *slog.Logger) []Turn {
	if logger == nil {
		logger = slog.Default()
	}

	var turns []Turn
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		turn, ok := parseLine(line)
		if !ok {
			logger.Warn("dropping malformed transcript line", "line", truncateForLog(line))
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

// parseLine extracts one turn from a single transcript line.
func parseLine(line string) (Turn, bool) {
	colon := strings.Index(line, ":")
	if colon <= 0 {
		return Turn{}, false
	}
	speaker := strings.TrimSpace(line[:colon])
	rest := strings.TrimSpace(line[colon+1:])

	// The remainder must open with a quote or the line is malformed.
	if rest == "" || !strings.ContainsAny(rest[:quoteRuneLen(rest)], quoteChars) {
		return Turn{}, false
	}
	openEnd := quoteRuneLen(rest)

	category, reaction, tone := DefaultCategory, DefaultReaction, DefaultTone
	body := rest

	// Metadata, if present, is the last [...] block that appears after the
	// last quote character preceding it.
	if metaStart, metaEnd := lastBracketBlock(rest); metaStart >= 0 {
		before := rest[:metaStart]
		if q := strings.LastIndexAny(before, quoteChars); q > 0 {
			category, reaction, tone = parseMetadata(rest[metaStart+1 : metaEnd])
			body = strings.TrimSpace(before)
		}
	}

	// Content lies between the opening quote and the last quote found before
	// the metadata (or end of line when there is none).
	closing := strings.LastIndexAny(body, quoteChars)
	if closing <= 0 || closing < openEnd {
		return Turn{}, false
	}
	content := body[openEnd:closing]

	return Turn{
		Speaker:       speaker,
		Content:       content,
		Length:        len([]rune(content)),
		Category:      category,
		Reaction:      reaction,
		EmotionalTone: tone,
	}, true
}

// quoteRuneLen returns the byte length of the leading quote rune, or 1 if the
// first byte is not a quote (callers then fail the ContainsAny check).
func quoteRuneLen(s string) int {
	for _, q := range []string{`"`, "“", "”"} {
		if strings.HasPrefix(s, q) {
			return len(q)
		}
	}
	return 1
}

// lastBracketBlock finds the final [...] block in the line. Returns the index
// of '[' and ']' or (-1, -1) if no complete block exists.
func lastBracketBlock(s string) (int, int) {
	end := strings.LastIndex(s, "]")
	if end < 0 {
		return -1, -1
	}
	start := strings.LastIndex(s[:end], "[")
	if start < 0 {
		return -1, -1
	}
	return start, end
}

// parseMetadata splits "category/reaction/tone"; absent segments keep their
// defaults.
func parseMetadata(meta string) (category, reaction, tone string) {
	category, reaction, tone = DefaultCategory, DefaultReaction, DefaultTone
	parts := strings.Split(meta, "/")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		category = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		reaction = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		tone = strings.TrimSpace(parts[2])
	}
	return category, reaction, tone
}

// FormatLine renders one turn in the canonical transcript form so stored
// messages can be fed back through Parse.
func FormatLine(speaker, content string) string {
	return speaker + `: "` + strings.ReplaceAll(content, "\n", " ") + `"`
}

func truncateForLog(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

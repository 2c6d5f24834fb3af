package triage

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTitleLen bounds a thread title, ellipsis included.
	MaxTitleLen = 100
	// MaxBodyLen is the host platform's message-length ceiling.
	MaxBodyLen = 2000
	// Ellipsis marks truncated text.
	Ellipsis = "..."

	// AttributionMarker delimits the attribution segment at the start of a filed body.
	AttributionMarker   = "**"
	attributionLead     = "Asked by "
	legacyLead          = "Original message from "
	FullQuestionHeading = "**Full question:**"
	AnswerHeading       = "**AI-generated answer:**"
	// UnknownAttribution replaces an attribution that cannot be recovered.
	UnknownAttribution = "Unknown"
)

var negativeResponses = map[string]struct{}{
	"no":    {},
	"no.":   {},
	"no!":   {},
	"no?":   {},
	"no..":  {},
	"no...": {},
}

// IsNegativeResponse reports whether an oracle reply means "I cannot answer".
func IsNegativeResponse(resp string) bool {
	_, ok := negativeResponses[strings.ToLower(strings.TrimSpace(resp))]
	return ok
}

// Truncate shortens text to at most limit runes, ending in an ellipsis when cut.
func Truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit <= len(Ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}

var linkTextEscaper = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`)

// EscapeLinkText backslash-escapes text for use inside a markdown [text](url) link.
func EscapeLinkText(text string) string {
	return linkTextEscaper.Replace(text)
}

// DeriveTitle bounds a question to a thread title.
func DeriveTitle(text string) string {
	return Truncate(text, MaxTitleLen)
}

// AttributionLine renders the leading "who asked" segment of a filed body.
func AttributionLine(q Question) string {
	handle := strings.TrimSpace(strings.ReplaceAll(q.SubmitterHandle, "*", ""))
	if handle == "" {
		handle = UnknownAttribution
	}

	var b strings.Builder
	b.WriteString(AttributionMarker + attributionLead + handle + AttributionMarker)
	if q.SubmitterID != "" {
		fmt.Fprintf(&b, " (<@%s>)", q.SubmitterID)
	}
	if q.OriginChannelID != "" {
		fmt.Fprintf(&b, " in <#%s>", q.OriginChannelID)
	}
	return b.String()
}

// BuildBody renders the first message of a filed thread.
func BuildBody(q Question, answer string) string {
	var b strings.Builder
	b.WriteString(AttributionLine(q))

	if utf8.RuneCountInString(q.Text) > MaxTitleLen {
		b.WriteString("\n\n" + FullQuestionHeading + "\n")
		b.WriteString(q.Text)
	}

	if trimmed := strings.TrimSpace(answer); trimmed != "" && !IsNegativeResponse(trimmed) {
		b.WriteString("\n\n" + AnswerHeading + "\n")
		b.WriteString(trimmed)
	}

	return Truncate(b.String(), MaxBodyLen)
}

// ParseAttribution recovers the submitter handle from a body written by BuildBody.
// Bodies from the earlier "Original message from" format are accepted too.
func ParseAttribution(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, AttributionMarker) {
		return "", fmt.Errorf("%w: missing attribution marker", ErrParse)
	}

	rest := trimmed[len(AttributionMarker):]
	end := strings.Index(rest, AttributionMarker)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated attribution", ErrParse)
	}

	segment := strings.TrimSpace(rest[:end])
	switch {
	case strings.HasPrefix(segment, attributionLead):
		segment = strings.TrimPrefix(segment, attributionLead)
	case strings.HasPrefix(segment, legacyLead):
		segment = strings.TrimPrefix(segment, legacyLead)
		if idx := strings.Index(segment, " in <#"); idx >= 0 {
			segment = segment[:idx]
		}
		segment = strings.TrimSuffix(segment, ":")
	default:
		return "", fmt.Errorf("%w: unrecognised attribution %q", ErrParse, segment)
	}

	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", fmt.Errorf("%w: empty attribution", ErrParse)
	}
	return segment, nil
}

// RecoverQuestionText rebuilds the full question text of a filed thread from its
// title and first message.
func RecoverQuestionText(title, body string) string {
	if idx := strings.Index(body, FullQuestionHeading); idx >= 0 {
		text := body[idx+len(FullQuestionHeading):]
		if end := strings.Index(text, "\n\n"+AnswerHeading); end >= 0 {
			text = text[:end]
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, AttributionMarker+legacyLead) {
		if nl := strings.Index(trimmed, "\n"); nl >= 0 {
			if text := strings.TrimSpace(trimmed[nl+1:]); text != "" {
				return text
			}
		}
	}

	return strings.TrimSpace(title)
}

package agent

import "strings"

// Kind tags how a chat tier ended.
type Kind int

const (
	// KindOk carries final text.
	KindOk Kind = iota
	// KindDegraded means this tier failed and the next one should run.
	KindDegraded
	// KindUnavailable means no tier could produce text.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindDegraded:
		return "degraded"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Outcome is the result of one tier of the chat fallback chain.
type Outcome struct {
	Kind   Kind
	Text   string
	Reason error
}

func Ok(text string) Outcome { return Outcome{Kind: KindOk, Text: text} }
func Degraded(reason error) Outcome { return Outcome{Kind: KindDegraded, Reason: reason} }
func Unavailable(reason error) Outcome { return Outcome{Kind: KindUnavailable, Reason: reason} }

// IsQuotaError matches provider rate-limit and quota failures by message.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") || strings.Contains(s, "quota") || strings.Contains(s, "exceeded")
}

package model

import "strings"

// Result is the verdict for a single email address.
// The backend produces it; the client only carries and displays it.
//
// Only Email and Status are guaranteed. The remaining fields are filled
// when the backend returns its detailed scoring output.
type Result struct {
	// Email is the address the verdict belongs to.
	Email string `json:"email"`

	// Status is the backend's verdict text, for example "valid" or "❌ Invalid".
	Status string `json:"status"`

	// Reason optionally explains the status (e.g. "No MX record").
	Reason string `json:"reason,omitempty"`

	// Score is the backend's 0-100 confidence score, if reported.
	Score *int `json:"score,omitempty"`

	ValidSyntax   *bool `json:"valid_syntax,omitempty"`
	ValidMX       *bool `json:"valid_mx,omitempty"`
	IsDisposable  *bool `json:"is_disposable,omitempty"`
	MailboxExists *bool `json:"mailbox_exists,omitempty"`
	IsSpamTrap    *bool `json:"is_spam_trap,omitempty"`
}

// Verdict is the normalized category of a Result status.
type Verdict int

const (
	// VerdictUnknown is used when the status text is not recognized.
	VerdictUnknown Verdict = iota

	// VerdictValid means the backend accepted the address.
	VerdictValid

	// VerdictRisky means the address exists but looks doubtful.
	VerdictRisky

	// VerdictInvalid means the backend rejected the address.
	VerdictInvalid
)

// String returns the lower-case verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictRisky:
		return "risky"
	case VerdictInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// decorativeGlyphs are the status decorations some backends prepend.
var decorativeGlyphs = []string{"✅", "❌"}

// StripGlyphs removes the ✅ and ❌ decorations from a status and trims it.
func StripGlyphs(status string) string {
	for _, g := range decorativeGlyphs {
		status = strings.ReplaceAll(status, g, "")
	}
	return strings.TrimSpace(status)
}

// Verdict classifies the result status.
// "invalid" is matched before "valid" since the former contains the latter.
func (r Result) Verdict() Verdict {
	s := strings.ToLower(StripGlyphs(r.Status))
	switch {
	case strings.Contains(s, "invalid"):
		return VerdictInvalid
	case strings.Contains(s, "risky"):
		return VerdictRisky
	case strings.Contains(s, "valid"):
		return VerdictValid
	default:
		return VerdictUnknown
	}
}

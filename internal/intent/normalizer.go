// File: internal/intent/normalizer.go
package intent

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// verbPattern maps a leading verb phrase to an action kind. Patterns are
// tried in order; the first match wins and the captured remainder becomes
// the target description.
type verbPattern struct {
	kind schemas.ActionKind
	re   *regexp.Regexp
}

var verbPatterns = []verbPattern{
	{schemas.ActionNavigate, regexp.MustCompile(`(?i)^(?:go to|navigate to|open|visit|load)\s+(.+)$`)},
	{schemas.ActionClick, regexp.MustCompile(`(?i)^(?:click on|click|press|tap on|tap|hit)\s+(.+)$`)},
	{schemas.ActionType, regexp.MustCompile(`(?i)^(?:type|enter|input|write|fill in|fill)\s+(.+)$`)},
	{schemas.ActionSelect, regexp.MustCompile(`(?i)^(?:select|choose|pick)\s+(.+)$`)},
	{schemas.ActionExtract, regexp.MustCompile(`(?i)^(?:extract|scrape|read|copy)\s+(.+)$`)},
	{schemas.ActionWait, regexp.MustCompile(`(?i)^(?:wait for|wait|pause)\s*(.*)$`)},
	{schemas.ActionScroll, regexp.MustCompile(`(?i)^(?:scroll(?: down| up)?(?: to)?)\s*(.*)$`)},
	{schemas.ActionScreenshot, regexp.MustCompile(`(?i)^(?:take a screenshot(?: of)?|screenshot)\s*(.*)$`)},
}

// typeTargetRe splits "type <text> into <target>" style instructions so the
// element description does not swallow the text to type.
var typeTargetRe = regexp.MustCompile(`(?i)^(.*?)\s+(?:into|in|on)\s+(?:the\s+)?(.+)$`)

// flagKeywords derive context flags from the whole instruction, not just
// the matched remainder.
var flagKeywords = map[schemas.ContextFlag][]string{
	schemas.FlagLogin:    {"login", "log in", "sign in", "signin", "password", "username"},
	schemas.FlagSearch:   {"search", "find", "look up", "query"},
	schemas.FlagForm:     {"form", "field", "fill"},
	schemas.FlagSubmit:   {"submit", "send", "confirm"},
	schemas.FlagTravel:   {"flight", "hotel", "travel", "booking", "trip", "departure", "check-in", "check in"},
	schemas.FlagShopping: {"cart", "buy", "shop", "checkout", "product", "order"},
	schemas.FlagPayment:  {"payment", "pay ", "credit card", "billing"},
}

// Normalize converts a raw instruction string into an IntentDescriptor.
// It is deterministic and total: unmatched input yields the generic
// interact kind with the whole instruction as the target description.
func Normalize(instruction string) schemas.IntentDescriptor {
	trimmed := strings.TrimSpace(instruction)

	desc := schemas.IntentDescriptor{
		Kind:              schemas.ActionInteract,
		TargetDescription: cleanTarget(trimmed),
		ContextFlags:      contextFlags(trimmed),
	}

	for _, p := range verbPatterns {
		m := p.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		desc.Kind = p.kind
		desc.TargetDescription = cleanTarget(m[1])

		// "type laptop into the search box" targets the search box.
		if p.kind == schemas.ActionType {
			if parts := typeTargetRe.FindStringSubmatch(m[1]); parts != nil {
				desc.TargetDescription = cleanTarget(parts[2])
			}
		}
		break
	}

	return desc
}

// FromRecordedEvent normalizes a structured recorder event. The element
// label is preferred over the raw selector as the target description.
func FromRecordedEvent(ev schemas.RecordedEvent) schemas.IntentDescriptor {
	target := ev.Label
	if target == "" {
		target = ev.Selector
	}
	if ev.Kind == schemas.ActionNavigate && target == "" {
		target = ev.URL
	}

	context := ev.Label + " " + ev.Text + " " + ev.URL
	return schemas.IntentDescriptor{
		Kind:              ev.Kind,
		TargetDescription: cleanTarget(target),
		ContextFlags:      contextFlags(context),
	}
}

// Describe builds a descriptor for an already-structured action, deriving
// context flags from the target text alone. Used when the action kind is
// known and only the element description needs interpreting.
func Describe(kind schemas.ActionKind, target string) schemas.IntentDescriptor {
	return schemas.IntentDescriptor{
		Kind:              kind,
		TargetDescription: cleanTarget(target),
		ContextFlags:      contextFlags(target),
	}
}

// cleanTarget strips quoting, leading articles, and trailing punctuation
// from a free-text target description.
func cleanTarget(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	lower := strings.ToLower(s)
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) {
			s = s[len(article):]
			break
		}
	}
	return strings.TrimRight(strings.TrimSpace(s), ".!")
}

func contextFlags(instruction string) map[schemas.ContextFlag]bool {
	lower := strings.ToLower(instruction)
	flags := make(map[schemas.ContextFlag]bool)
	for flag, keywords := range flagKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				flags[flag] = true
				break
			}
		}
	}
	return flags
}

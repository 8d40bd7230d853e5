// File: internal/dom/extractor.go
package dom

import (
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Tag weights for the priority heuristic. Interactive tags rank above
// generic containers.
var tagPriority = map[string]float64{
	"button":   0.5,
	"a":        0.5,
	"input":    0.5,
	"select":   0.5,
	"textarea": 0.5,
	"summary":  0.4,
	"label":    0.3,
	"option":   0.3,
	"form":     0.2,
	"img":      0.2,
	"div":      0.1,
	"span":     0.1,
	"p":        0.1,
}

// Interactive ARIA roles receive the interactive-tag weight regardless of
// the underlying tag.
var interactiveRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"tab":      true,
	"menuitem": true,
	"checkbox": true,
	"radio":    true,
	"textbox":  true,
	"combobox": true,
	"searchbox": true,
}

// aboveFoldY is the viewport height below which position adds weight.
const aboveFoldY = 600.0

// Extract converts a raw DOM snapshot into scored candidates. It is a pure
// transformation: an empty or nil snapshot yields an empty list, never an
// error.
func Extract(generation uint64, nodes []schemas.RawNode) []schemas.Candidate {
	candidates := make([]schemas.Candidate, 0, len(nodes))
	for _, node := range nodes {
		visible := isVisible(node)
		candidates = append(candidates, schemas.Candidate{
			Ref:          node.Ref,
			Generation:   generation,
			TagName:      strings.ToLower(node.TagName),
			Attributes:   node.Attributes,
			Text:         node.Text,
			Box:          node.Box,
			Visible:      visible,
			Interactable: visible && !node.Covered,
			DOMOrder:     node.DOMOrder,
			Priority:     priorityScore(node),
		})
	}
	return candidates
}

// isVisible applies the structural visibility rules: a non-empty box inside
// the viewport, no hiding style, no hidden attribute, not disabled.
func isVisible(node schemas.RawNode) bool {
	if node.Box.Empty() || node.StyleHidden || node.Disabled {
		return false
	}
	if node.Box.X < 0 || node.Box.Y < 0 {
		return false
	}
	if _, hidden := node.Attributes["hidden"]; hidden {
		return false
	}
	if node.Attributes["aria-hidden"] == "true" {
		return false
	}
	if node.Attributes["type"] == "hidden" {
		return false
	}
	return true
}

// priorityScore combines tag, attribute, and position heuristics into a
// score normalized to [0,1].
func priorityScore(node schemas.RawNode) float64 {
	tag := strings.ToLower(node.TagName)
	score, ok := tagPriority[tag]
	if !ok {
		score = 0.2
	}
	if interactiveRoles[node.Attributes["role"]] && score < 0.5 {
		score = 0.5
	}

	// Identifying attributes each add fixed weight.
	if node.Attributes["id"] != "" {
		score += 0.15
	}
	if node.Attributes["data-testid"] != "" {
		score += 0.15
	}
	if node.Attributes["name"] != "" {
		score += 0.1
	}
	if node.Attributes["aria-label"] != "" {
		score += 0.1
	}

	// Elements near the top of the viewport are more likely targets.
	if node.Box.Y >= 0 && node.Box.Y < aboveFoldY {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

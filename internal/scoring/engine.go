// File: internal/scoring/engine.go
package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// ErrNoMatch is the sentinel wrapped by NoMatchError. Callers must treat it
// as a hard decision point and never act on a sub-threshold candidate.
var ErrNoMatch = errors.New("no element matched above the acceptance threshold")

// NoMatchError reports a failed resolution with the best rejected score so
// failures stay diagnosable.
type NoMatchError struct {
	Target     string
	BestScore  float64
	Threshold  float64
	Candidates int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no match for %q: best score %.2f below threshold %.2f across %d candidates",
		e.Target, e.BestScore, e.Threshold, e.Candidates)
}

func (e *NoMatchError) Unwrap() error { return ErrNoMatch }

// Weights of the final combination rule. The strategy maximum dominates;
// the structural priority of the element adjusts it.
const (
	strategyWeight = 0.7
	priorityWeight = 0.3
)

// matchSignals are the candidate attributes compared against the target
// description, checked alongside the element text.
var matchSignals = []string{"aria-label", "placeholder", "name", "id", "title", "value"}

// Engine ranks candidates against an intent descriptor.
type Engine struct {
	logger    *zap.Logger
	threshold float64
	maxFuzzy  int
}

// NewEngine builds a scoring engine from configuration.
func NewEngine(cfg config.ScoringConfig, logger *zap.Logger) *Engine {
	return &Engine{
		logger:    logger.Named("scoring"),
		threshold: cfg.AcceptanceThreshold,
		maxFuzzy:  cfg.MaxFuzzyDistance,
	}
}

// scored pairs a candidate with its computed final score.
type scored struct {
	candidate schemas.Candidate
	score     float64
	strategy  schemas.MatchStrategy
}

// Resolve picks the single best candidate for the intent, or returns a
// NoMatchError when the top score is below the acceptance threshold.
func (e *Engine) Resolve(intent schemas.IntentDescriptor, candidates []schemas.Candidate) (schemas.MatchResult, error) {
	target := strings.ToLower(strings.TrimSpace(intent.TargetDescription))

	eligible := e.eligible(intent.Kind, candidates)
	ordinal, ordinalTag := parseOrdinal(target)

	results := make([]scored, 0, len(eligible))
	for _, cand := range eligible {
		strategyScore, strategy := e.strategyScore(target, intent, cand, ordinal, ordinalTag, eligible)
		final := strategyScore*strategyWeight + cand.Priority*priorityWeight
		if final > 1 {
			final = 1
		}
		if final < 0 {
			final = 0
		}
		results = append(results, scored{candidate: cand, score: final, strategy: strategy})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].candidate.DOMOrder < results[j].candidate.DOMOrder
	})

	if len(results) == 0 || results[0].score < e.threshold {
		best := 0.0
		if len(results) > 0 {
			best = results[0].score
		}
		return schemas.MatchResult{}, &NoMatchError{
			Target:     intent.TargetDescription,
			BestScore:  best,
			Threshold:  e.threshold,
			Candidates: len(candidates),
		}
	}

	top := results[0]
	e.logger.Debug("Resolved element",
		zap.String("target", intent.TargetDescription),
		zap.String("tag", top.candidate.TagName),
		zap.Float64("score", top.score),
		zap.String("strategy", string(top.strategy)))

	return schemas.MatchResult{
		Candidate: top.candidate,
		Score:     top.score,
		Strategy:  top.strategy,
	}, nil
}

// eligible filters candidates by the action kind's needs: interaction
// kinds require interactable elements, extraction only visibility.
func (e *Engine) eligible(kind schemas.ActionKind, candidates []schemas.Candidate) []schemas.Candidate {
	needsInteraction := true
	if kind == schemas.ActionExtract || kind == schemas.ActionScroll {
		needsInteraction = false
	}

	out := make([]schemas.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Visible {
			continue
		}
		if needsInteraction && !c.Interactable {
			continue
		}
		out = append(out, c)
	}
	return out
}

// strategyScore evaluates the four strategies for one candidate and keeps
// the maximum. Ties in the maximum resolve in strategy-strength order:
// exact, fuzzy, context, positional.
func (e *Engine) strategyScore(
	target string,
	intent schemas.IntentDescriptor,
	cand schemas.Candidate,
	ordinal int,
	ordinalTag string,
	peers []schemas.Candidate,
) (float64, schemas.MatchStrategy) {
	best := exactScore(target, cand)
	strategy := schemas.StrategyExact

	if s := e.fuzzyScore(target, cand); s > best {
		best, strategy = s, schemas.StrategyFuzzy
	}
	if s := contextScore(intent, cand); s > best {
		best, strategy = s, schemas.StrategyContext
	}
	if ordinal != 0 {
		if s := positionalScore(ordinal, ordinalTag, cand, peers); s > best {
			best, strategy = s, schemas.StrategyPositional
		}
	}
	return best, strategy
}

// signals lists the comparable strings of one candidate, element text
// first.
func signals(cand schemas.Candidate) []string {
	out := make([]string, 0, len(matchSignals)+1)
	if cand.Text != "" {
		out = append(out, cand.Text)
	}
	for _, name := range matchSignals {
		if v := cand.Attr(name); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// exactScore returns 1.0 on a case-insensitive equality between the target
// and any signal, else 0.
func exactScore(target string, cand schemas.Candidate) float64 {
	if target == "" {
		return 0
	}
	for _, sig := range signals(cand) {
		if strings.EqualFold(strings.TrimSpace(sig), target) {
			return 1.0
		}
	}
	return 0
}

// fuzzyScore accepts edit distances up to the configured maximum and maps
// them to 1 − distance/max(len).
func (e *Engine) fuzzyScore(target string, cand schemas.Candidate) float64 {
	if target == "" {
		return 0
	}
	best := 0.0
	for _, sig := range signals(cand) {
		sig = strings.ToLower(strings.TrimSpace(sig))
		if sig == "" {
			continue
		}
		d := levenshtein(target, sig)
		if d > e.maxFuzzy {
			continue
		}
		longer := len([]rune(target))
		if l := len([]rune(sig)); l > longer {
			longer = l
		}
		if longer == 0 {
			continue
		}
		if s := 1.0 - float64(d)/float64(longer); s > best {
			best = s
		}
	}
	return best
}

// contextScore cross-references the intent's context flags with element
// semantics. Bonuses are additive and capped at 1.0.
func contextScore(intent schemas.IntentDescriptor, cand schemas.Candidate) float64 {
	inputType := strings.ToLower(cand.Attr("type"))
	placeholder := strings.ToLower(cand.Attr("placeholder"))
	text := strings.ToLower(cand.Text)

	score := 0.0
	if intent.HasFlag(schemas.FlagLogin) {
		if inputType == "password" {
			score += 0.3
		}
		if inputType == "email" || strings.Contains(strings.ToLower(cand.Attr("name")), "user") {
			score += 0.2
		}
	}
	if intent.HasFlag(schemas.FlagSearch) {
		if strings.Contains(placeholder, "search") {
			score += 0.5
		} else if inputType == "search" {
			score += 0.3
		}
	}
	if intent.HasFlag(schemas.FlagTravel) && inputType == "date" {
		score += 0.4
	}
	if intent.HasFlag(schemas.FlagSubmit) {
		if inputType == "submit" || (cand.TagName == "button" && strings.Contains(text, "submit")) {
			score += 0.3
		}
	}
	if intent.HasFlag(schemas.FlagForm) {
		switch cand.TagName {
		case "input", "select", "textarea":
			score += 0.2
		}
	}
	if intent.HasFlag(schemas.FlagShopping) {
		if strings.Contains(text, "cart") || strings.Contains(text, "buy") || strings.Contains(text, "checkout") {
			score += 0.3
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// ordinalWords maps ordinal words to one-based positions. -1 means last.
var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	"last": -1,
}

// ordinalTags maps description keywords to the tag whose DOM order the
// ordinal indexes.
var ordinalTags = map[string]string{
	"link": "a", "button": "button", "input": "input", "field": "input",
	"box": "input", "checkbox": "input", "image": "img", "option": "option",
	"row": "tr", "item": "li",
}

// parseOrdinal extracts an ordinal position and an optional tag keyword
// from the target description. Zero means no ordinal present.
func parseOrdinal(target string) (int, string) {
	ordinal := 0
	tag := ""
	for _, word := range strings.Fields(target) {
		if n, ok := ordinalWords[word]; ok && ordinal == 0 {
			ordinal = n
		}
		if t, ok := ordinalTags[strings.TrimSuffix(word, "s")]; ok && tag == "" {
			tag = t
		}
	}
	return ordinal, tag
}

// positionalScore gives 1.0 to the candidate occupying the requested
// ordinal among its tag peers, 0 to everyone else.
func positionalScore(ordinal int, tag string, cand schemas.Candidate, peers []schemas.Candidate) float64 {
	if tag != "" && cand.TagName != tag {
		return 0
	}

	ranked := make([]schemas.Candidate, 0, len(peers))
	for _, p := range peers {
		if tag == "" || p.TagName == tag {
			ranked = append(ranked, p)
		}
	}
	if len(ranked) == 0 {
		return 0
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].DOMOrder < ranked[j].DOMOrder })

	want := ordinal - 1
	if ordinal == -1 {
		want = len(ranked) - 1
	}
	if want < 0 || want >= len(ranked) {
		return 0
	}
	if ranked[want].Ref == cand.Ref && ranked[want].DOMOrder == cand.DOMOrder {
		return 1.0
	}
	return 0
}

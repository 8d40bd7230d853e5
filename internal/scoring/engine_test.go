package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.ScoringConfig{AcceptanceThreshold: 0.2, MaxFuzzyDistance: 2}, zap.NewNop())
}

func cand(ref, tag string, order int, attrs map[string]string, text string) schemas.Candidate {
	return schemas.Candidate{
		Ref:          ref,
		Generation:   1,
		TagName:      tag,
		Attributes:   attrs,
		Text:         text,
		Box:          schemas.BoundingBox{X: 0, Y: float64(order * 10), Width: 100, Height: 20},
		Visible:      true,
		Interactable: true,
		DOMOrder:     order,
		Priority:     0.5,
	}
}

func clickIntent(target string, flags ...schemas.ContextFlag) schemas.IntentDescriptor {
	fm := make(map[schemas.ContextFlag]bool)
	for _, f := range flags {
		fm[f] = true
	}
	return schemas.IntentDescriptor{Kind: schemas.ActionClick, TargetDescription: target, ContextFlags: fm}
}

func TestResolveExactMatch(t *testing.T) {
	e := newTestEngine(t)
	candidates := []schemas.Candidate{
		cand("a", "button", 0, nil, "Cancel"),
		cand("b", "button", 1, nil, "Submit Order"),
	}

	res, err := e.Resolve(clickIntent("submit order"), candidates)
	require.NoError(t, err)
	assert.Equal(t, "b", res.Candidate.Ref)
	assert.Equal(t, schemas.StrategyExact, res.Strategy)
	assert.GreaterOrEqual(t, res.Score, 0.2)
}

func TestExactOutranksFuzzyCompetitor(t *testing.T) {
	e := newTestEngine(t)
	exact := cand("exact", "button", 1, nil, "Checkout")
	fuzzy := cand("fuzzy", "button", 0, nil, "Checkout!")

	res, err := e.Resolve(clickIntent("checkout"), []schemas.Candidate{fuzzy, exact})
	require.NoError(t, err)
	assert.Equal(t, "exact", res.Candidate.Ref)
	assert.Equal(t, schemas.StrategyExact, res.Strategy)
}

func TestExactMatchesAttributeSignals(t *testing.T) {
	e := newTestEngine(t)
	testCases := []struct {
		name  string
		attrs map[string]string
	}{
		{"aria-label", map[string]string{"aria-label": "Close dialog"}},
		{"placeholder", map[string]string{"placeholder": "Close dialog"}},
		{"name", map[string]string{"name": "Close dialog"}},
		{"id", map[string]string{"id": "Close dialog"}},
		{"title", map[string]string{"title": "Close dialog"}},
		{"value", map[string]string{"value": "Close dialog"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Resolve(clickIntent("close dialog"),
				[]schemas.Candidate{cand("x", "button", 0, tc.attrs, "")})
			require.NoError(t, err)
			assert.Equal(t, schemas.StrategyExact, res.Strategy)
		})
	}
}

func TestFuzzyDistanceBoundary(t *testing.T) {
	e := newTestEngine(t)

	// Two edits on a ten-character signal: accepted at 1 - 2/10 = 0.8.
	score := e.fuzzyScore("abcdefghij", cand("x", "button", 0, nil, "abcdefghxy"))
	assert.InDelta(t, 0.8, score, 1e-9)

	// Three edits are rejected by the fuzzy strategy outright.
	score = e.fuzzyScore("abcdefghij", cand("x", "button", 0, nil, "abcdefgxyz"))
	assert.Equal(t, 0.0, score)
}

func TestNeverReturnsBelowThreshold(t *testing.T) {
	e := newTestEngine(t)

	// Candidates with nothing in common with the target and no context.
	candidates := []schemas.Candidate{}
	for i := 0; i < 5; i++ {
		c := cand("c", "div", i, nil, "")
		c.Priority = 0.0
		candidates = append(candidates, c)
	}

	_, err := e.Resolve(clickIntent("totally unrelated widget"), candidates)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatch)

	var nm *NoMatchError
	require.True(t, errors.As(err, &nm))
	assert.Less(t, nm.BestScore, 0.2)
	assert.Equal(t, 0.2, nm.Threshold)
}

func TestEmptyCandidateList(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Resolve(clickIntent("anything"), nil)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestContextBonuses(t *testing.T) {
	t.Run("login plus password field", func(t *testing.T) {
		s := contextScore(clickIntent("password box", schemas.FlagLogin),
			cand("p", "input", 0, map[string]string{"type": "password"}, ""))
		assert.InDelta(t, 0.3, s, 1e-9)
	})

	t.Run("login username field is case insensitive", func(t *testing.T) {
		s := contextScore(clickIntent("username box", schemas.FlagLogin),
			cand("u", "input", 0, map[string]string{"type": "text", "name": "UserName"}, ""))
		assert.InDelta(t, 0.2, s, 1e-9)
	})

	t.Run("search placeholder", func(t *testing.T) {
		s := contextScore(clickIntent("find products", schemas.FlagSearch),
			cand("s", "input", 0, map[string]string{"placeholder": "Search..."}, ""))
		assert.InDelta(t, 0.5, s, 1e-9)
	})

	t.Run("travel date field", func(t *testing.T) {
		s := contextScore(clickIntent("departure", schemas.FlagTravel),
			cand("d", "input", 0, map[string]string{"type": "date"}, ""))
		assert.InDelta(t, 0.4, s, 1e-9)
	})

	t.Run("bonuses cap at one", func(t *testing.T) {
		c := cand("x", "input", 0, map[string]string{
			"type":        "date",
			"placeholder": "search dates",
		}, "")
		intent := clickIntent("x", schemas.FlagSearch, schemas.FlagTravel, schemas.FlagForm)
		assert.LessOrEqual(t, contextScore(intent, c), 1.0)
	})
}

func TestContextResolvesSearchBox(t *testing.T) {
	e := newTestEngine(t)
	candidates := []schemas.Candidate{
		cand("nav", "a", 0, nil, "Home"),
		cand("search", "input", 1, map[string]string{"placeholder": "search..."}, ""),
		cand("foot", "a", 2, nil, "Imprint"),
	}

	intent := schemas.IntentDescriptor{
		Kind:              schemas.ActionType,
		TargetDescription: "search box",
		ContextFlags:      map[schemas.ContextFlag]bool{schemas.FlagSearch: true},
	}

	res, err := e.Resolve(intent, candidates)
	require.NoError(t, err)
	assert.Equal(t, "search", res.Candidate.Ref)
}

func TestPositionalOrdinals(t *testing.T) {
	e := newTestEngine(t)
	candidates := []schemas.Candidate{
		cand("btn1", "button", 0, nil, "one"),
		cand("link1", "a", 1, nil, "alpha"),
		cand("btn2", "button", 2, nil, "two"),
		cand("link2", "a", 3, nil, "beta"),
		cand("btn3", "button", 4, nil, "three"),
	}

	testCases := []struct {
		target  string
		wantRef string
	}{
		{"first button", "btn1"},
		{"second button", "btn2"},
		{"last button", "btn3"},
		{"first link", "link1"},
		{"last link", "link2"},
	}
	for _, tc := range testCases {
		t.Run(tc.target, func(t *testing.T) {
			res, err := e.Resolve(clickIntent(tc.target), candidates)
			require.NoError(t, err)
			assert.Equal(t, tc.wantRef, res.Candidate.Ref)
			assert.Equal(t, schemas.StrategyPositional, res.Strategy)
		})
	}
}

func TestOrdinalOutOfRange(t *testing.T) {
	e := newTestEngine(t)
	candidates := []schemas.Candidate{cand("btn1", "button", 0, nil, "one")}
	c := candidates[0]
	c.Priority = 0.0
	candidates[0] = c

	_, err := e.Resolve(clickIntent("fifth button"), candidates)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestTieBreakByDOMOrder(t *testing.T) {
	e := newTestEngine(t)
	first := cand("first", "button", 1, nil, "Delete")
	second := cand("second", "button", 5, nil, "Delete")

	res, err := e.Resolve(clickIntent("delete"), []schemas.Candidate{second, first})
	require.NoError(t, err)
	assert.Equal(t, "first", res.Candidate.Ref)
}

func TestHiddenAndCoveredCandidatesExcluded(t *testing.T) {
	e := newTestEngine(t)

	hidden := cand("hidden", "button", 0, nil, "Pay now")
	hidden.Visible = false
	hidden.Interactable = false

	covered := cand("covered", "button", 1, nil, "Pay now")
	covered.Interactable = false

	visible := cand("visible", "button", 2, nil, "Pay now")

	res, err := e.Resolve(clickIntent("pay now"), []schemas.Candidate{hidden, covered, visible})
	require.NoError(t, err)
	assert.Equal(t, "visible", res.Candidate.Ref)
}

func TestExtractToleratesNonInteractable(t *testing.T) {
	e := newTestEngine(t)
	priceSpan := cand("price", "span", 0, map[string]string{"id": "price"}, "$19.99")
	priceSpan.Interactable = false

	intent := schemas.IntentDescriptor{Kind: schemas.ActionExtract, TargetDescription: "price"}
	res, err := e.Resolve(intent, []schemas.Candidate{priceSpan})
	require.NoError(t, err)
	assert.Equal(t, "price", res.Candidate.Ref)
}

func TestLevenshtein(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"search", "search", 0},
		{"señor", "senor", 1},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, levenshtein(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
	}
}

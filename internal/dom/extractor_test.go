package dom

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func box(y float64) schemas.BoundingBox {
	return schemas.BoundingBox{X: 10, Y: y, Width: 100, Height: 30}
}

func TestExtractEmptySnapshot(t *testing.T) {
	assert.Empty(t, Extract(1, nil))
	assert.Empty(t, Extract(1, []schemas.RawNode{}))
}

func TestExtractVisibility(t *testing.T) {
	testCases := []struct {
		name        string
		node        schemas.RawNode
		wantVisible bool
	}{
		{
			name:        "plain visible button",
			node:        schemas.RawNode{TagName: "button", Box: box(100)},
			wantVisible: true,
		},
		{
			name:        "zero size box",
			node:        schemas.RawNode{TagName: "button", Box: schemas.BoundingBox{}},
			wantVisible: false,
		},
		{
			name:        "style hidden",
			node:        schemas.RawNode{TagName: "button", Box: box(100), StyleHidden: true},
			wantVisible: false,
		},
		{
			name:        "disabled",
			node:        schemas.RawNode{TagName: "button", Box: box(100), Disabled: true},
			wantVisible: false,
		},
		{
			name: "hidden attribute",
			node: schemas.RawNode{TagName: "div", Box: box(100),
				Attributes: map[string]string{"hidden": ""}},
			wantVisible: false,
		},
		{
			name: "aria-hidden",
			node: schemas.RawNode{TagName: "div", Box: box(100),
				Attributes: map[string]string{"aria-hidden": "true"}},
			wantVisible: false,
		},
		{
			name: "hidden input type",
			node: schemas.RawNode{TagName: "input", Box: box(100),
				Attributes: map[string]string{"type": "hidden"}},
			wantVisible: false,
		},
		{
			name: "offscreen left",
			node: schemas.RawNode{TagName: "button",
				Box: schemas.BoundingBox{X: -500, Y: 10, Width: 100, Height: 30}},
			wantVisible: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(1, []schemas.RawNode{tc.node})
			require.Len(t, got, 1)
			assert.Equal(t, tc.wantVisible, got[0].Visible)
		})
	}
}

func TestExtractInteractability(t *testing.T) {
	nodes := []schemas.RawNode{
		{TagName: "button", Box: box(100)},
		{TagName: "button", Box: box(100), Covered: true},
		{TagName: "button", Box: box(100), StyleHidden: true, Covered: false},
	}
	got := Extract(7, nodes)
	require.Len(t, got, 3)

	assert.True(t, got[0].Interactable)
	assert.False(t, got[1].Interactable, "covered element must not be interactable")
	assert.False(t, got[2].Interactable, "invisible element must not be interactable")
	for _, c := range got {
		assert.Equal(t, uint64(7), c.Generation)
	}
}

func TestPriorityOrdering(t *testing.T) {
	richButton := schemas.RawNode{
		TagName:    "button",
		Box:        box(50),
		Attributes: map[string]string{"id": "submit", "aria-label": "Submit the form"},
	}
	plainDiv := schemas.RawNode{TagName: "div", Box: box(2000)}
	roleButton := schemas.RawNode{
		TagName:    "div",
		Box:        box(50),
		Attributes: map[string]string{"role": "button"},
	}

	got := Extract(1, []schemas.RawNode{richButton, plainDiv, roleButton})
	require.Len(t, got, 3)

	assert.Greater(t, got[0].Priority, got[2].Priority,
		"identified button must outrank bare role=button")
	assert.Greater(t, got[2].Priority, got[1].Priority,
		"role=button must outrank a generic container")
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Priority, 0.0)
		assert.LessOrEqual(t, c.Priority, 1.0)
	}
}

func TestParseHTML(t *testing.T) {
	page := `<html><head><title>t</title><script>var x;</script></head><body>
		<h1>Shop</h1>
		<input type="text" placeholder="search..." name="q">
		<button id="go">Search</button>
		<a href="/cart" style="display: none">Cart</a>
	</body></html>`

	nodes, err := ParseHTML(strings.NewReader(page))
	require.NoError(t, err)

	byTag := map[string]schemas.RawNode{}
	for _, n := range nodes {
		byTag[n.TagName] = n
	}

	// script/style/head content never becomes a node.
	_, hasScript := byTag["script"]
	assert.False(t, hasScript)

	input, ok := byTag["input"]
	require.True(t, ok)
	assert.Equal(t, "search...", input.Attributes["placeholder"])

	button, ok := byTag["button"]
	require.True(t, ok)
	assert.Equal(t, "Search", button.Text)

	link, ok := byTag["a"]
	require.True(t, ok)
	assert.True(t, link.StyleHidden)

	// DOM order follows document order.
	h1 := byTag["h1"]
	assert.Less(t, h1.DOMOrder, button.DOMOrder)
}

func TestParseHTMLTruncatesTextOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ä", maxTextLen+8)
	page := `<body><button>` + long + `</button></body>`

	nodes, err := ParseHTML(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, nodes, 2) // body and button

	var button schemas.RawNode
	for _, n := range nodes {
		if n.TagName == "button" {
			button = n
		}
	}
	assert.True(t, utf8.ValidString(button.Text), "truncation must not split a rune")
	assert.Equal(t, maxTextLen, utf8.RuneCountInString(button.Text))
}

func TestParseHTMLThenExtract(t *testing.T) {
	page := `<body><button>OK</button><button disabled>Nope</button></body>`
	nodes, err := ParseHTML(strings.NewReader(page))
	require.NoError(t, err)

	cands := Extract(1, nodes)
	visible := 0
	for _, c := range cands {
		if c.Visible {
			visible++
		}
	}
	assert.Equal(t, 2, visible, "body and enabled button are visible, disabled button is not")
}

package export

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mapFetcher serves canned bodies by URL; unknown URLs fail.
type mapFetcher struct {
	responses map[string][]byte
}

func (f *mapFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := f.responses[rawURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return body, nil
}

func newTestInliner(t *testing.T, responses map[string][]byte) *Inliner {
	t.Helper()
	in, err := NewInliner(&mapFetcher{responses: responses}, "https://example.com", DefaultInlineRules(), zap.NewNop())
	require.NoError(t, err)
	return in
}

func transform(t *testing.T, in *Inliner, src string) string {
	t.Helper()
	out, err := in.Transform(context.Background(), []byte(src), "https://example.com/about")
	require.NoError(t, err)
	return string(out)
}

func TestNewInlinerRejectsRelativeSiteURL(t *testing.T) {
	t.Parallel()

	_, err := NewInliner(&mapFetcher{}, "/not/absolute", DefaultInlineRules(), zap.NewNop())
	require.Error(t, err)
}

func TestInlineSameOriginStylesheet(t *testing.T) {
	t.Parallel()

	in := newTestInliner(t, map[string][]byte{
		"https://example.com/css/site.css": []byte("body { color: red; }"),
	})
	out := transform(t, in, `<html><head><link rel="stylesheet" href="/css/site.css"></head><body></body></html>`)

	require.Contains(t, out, "<style>body { color: red; }</style>")
	require.NotContains(t, out, "site.css")
}

func TestInlineSameOriginScript(t *testing.T) {
	t.Parallel()

	in := newTestInliner(t, map[string][]byte{
		"https://example.com/js/app.js": []byte(`console.log("a < b")`),
	})
	out := transform(t, in, `<html><head><script src="/js/app.js"></script></head><body></body></html>`)

	// Script bodies are raw text; the serializer must not entity-escape them.
	require.Contains(t, out, `<script>console.log("a < b")</script>`)
	require.NotContains(t, out, "app.js")
}

func TestCrossOriginScriptLeftAlone(t *testing.T) {
	t.Parallel()

	in := newTestInliner(t, map[string][]byte{})
	out := transform(t, in, `<html><head><script src="https://cdn.other.com/lib.js"></script></head><body></body></html>`)

	require.Contains(t, out, `src="https://cdn.other.com/lib.js"`)
}

func TestFailedInlineKeepsElement(t *testing.T) {
	t.Parallel()

	// Same-origin but the fetch fails: the link stays, rewritten relative.
	in := newTestInliner(t, map[string][]byte{})
	out := transform(t, in, `<html><head><link rel="stylesheet" href="/css/missing.css"></head><body></body></html>`)

	require.Contains(t, out, `href="css/missing.css"`)
}

func TestRewriteAssetPaths(t *testing.T) {
	t.Parallel()

	in := newTestInliner(t, map[string][]byte{})
	src := `<html><body>` +
		`<img src="/wp-content/a.png">` +
		`<img src="b.png">` +
		`<img src="https://other.com/c.png">` +
		`</body></html>`
	out := transform(t, in, src)

	require.Contains(t, out, `src="wp-content/a.png"`)
	// Document-relative references resolve against the page's directory.
	require.Contains(t, out, `src="b.png"`)
	require.Contains(t, out, `src="https://other.com/c.png"`)
}

func TestRemoveDynamicElements(t *testing.T) {
	t.Parallel()

	in := newTestInliner(t, map[string][]byte{})
	src := `<html><head>` +
		`<meta name="generator" content="WordPress 6.4">` +
		`<link rel="edituri" href="/xmlrpc?rsd">` +
		`<link rel="stylesheet" href="/wp-includes/css/admin.css">` +
		`<script src="/wp-includes/js/emoji.js"></script>` +
		`</head><body>` +
		`<!-- rendered in 0.2s -->` +
		`<div id="wpadminbar">toolbar</div>` +
		`<div class="widget dynamic-class">fresh</div>` +
		`<form action="/search"><input name="q"></form>` +
		`<p>content stays</p>` +
		`</body></html>`
	out := transform(t, in, src)

	require.Contains(t, out, "<p>content stays</p>")
	require.NotContains(t, out, "generator")
	require.NotContains(t, out, "edituri")
	require.NotContains(t, out, "wp-includes")
	require.NotContains(t, out, "wpadminbar")
	require.NotContains(t, out, "dynamic-class")
	require.NotContains(t, out, "<form")
	require.NotContains(t, out, "rendered in")
}

func TestTransformUnparsableReturnsSource(t *testing.T) {
	t.Parallel()

	in := newTestInliner(t, map[string][]byte{})
	src := "just text, no markup"
	out := transform(t, in, src)
	require.Contains(t, out, "just text, no markup")
}

package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveRelative(t *testing.T) {
	t.Parallel()

	base := "https://example.com/blog/post"

	cases := []struct {
		name string
		ref  string
		want string
	}{
		{"protocol-relative", "//cdn.example.com/app.js", "https://cdn.example.com/app.js"},
		{"root-relative", "/assets/site.css", "https://example.com/assets/site.css"},
		{"document-relative", "img/logo.png", "https://example.com/blog/img/logo.png"},
		{"dot-segments are kept verbatim", "../style.css", "https://example.com/blog/../style.css"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ResolveRelative(tc.ref, base))
		})
	}
}

func TestResolveRelativeRootBase(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://example.com/img/logo.png",
		ResolveRelative("img/logo.png", "https://example.com/"))
	require.Equal(t, "https://example.com/img/logo.png",
		ResolveRelative("img/logo.png", "https://example.com"))
}

func TestResolveRelativeUnparsableBase(t *testing.T) {
	t.Parallel()

	// Without a usable base the reference passes through untouched.
	require.Equal(t, "img/logo.png", ResolveRelative("img/logo.png", "not a url"))
}

func TestHasScheme(t *testing.T) {
	t.Parallel()

	require.True(t, HasScheme("https://example.com/a"))
	require.True(t, HasScheme("http://example.com"))
	require.False(t, HasScheme("//example.com/a"))
	require.False(t, HasScheme("/a/b"))
	require.False(t, HasScheme("a/b"))
}

func TestArchiveEntryName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		want string
	}{
		{"root", "https://example.com/", "index.html"},
		{"no path", "https://example.com", "index.html"},
		{"single segment", "https://example.com/about", "about.html"},
		{"trailing slash", "https://example.com/about/", "about.html"},
		{"nested keeps directories", "https://example.com/blog/2024/hello-world", "blog/2024/hello-world.html"},
		{"segments slugified independently", "https://example.com/My Page/Sub Page", "my-page/sub-page.html"},
		{"punctuation collapses", "https://example.com/a..b//c", "a-b/c.html"},
		{"query ignored", "https://example.com/about?ref=1", "about.html"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ArchiveEntryName(tc.url))
		})
	}
}

func TestArchiveEntryNameDistinctPathsStayDistinct(t *testing.T) {
	t.Parallel()

	// A hyphen inside a segment must not be confused with a directory
	// boundary after slugification.
	a := ArchiveEntryName("https://example.com/foo-bar")
	b := ArchiveEntryName("https://example.com/foo/bar")
	require.NotEqual(t, a, b)
	require.Equal(t, "foo-bar.html", a)
	require.Equal(t, "foo/bar.html", b)
}

func TestRelativeAssetPath(t *testing.T) {
	t.Parallel()

	root := "https://example.com"
	require.Equal(t, "wp-content/site.css",
		RelativeAssetPath("https://example.com/wp-content/site.css", root))
	require.Equal(t, "wp-content/site.css",
		RelativeAssetPath("https://example.com/wp-content/site.css", root+"/"))
	require.Equal(t, "https://other.com/site.css",
		RelativeAssetPath("https://other.com/site.css", root))
}

func TestAssetPathRoundTrip(t *testing.T) {
	t.Parallel()

	// Rewriting to a root-relative path and resolving it against the site
	// root recovers the original URL for paths without dot segments.
	root := "https://example.com"
	urls := []string{
		"https://example.com/wp-content/a.png",
		"https://example.com/uploads/2024/photo.jpg",
		"https://example.com/app.js",
	}
	for _, u := range urls {
		rel := RelativeAssetPath(u, root)
		require.Equal(t, u, ResolveRelative(rel, root+"/"))
	}
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	require.True(t, SameOrigin("https://example.com/a", "https://example.com"))
	require.True(t, SameOrigin("https://EXAMPLE.com/a", "https://example.com"))
	require.False(t, SameOrigin("https://cdn.example.com/a", "https://example.com"))
	require.False(t, SameOrigin("://bad", "https://example.com"))
}

package export

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var segmentSlugger = regexp.MustCompile(`[^a-z0-9]+`)

// ResolveRelative converts a possibly-relative reference found in markup
// into an absolute URL against baseURL. Three cases are handled:
// protocol-relative (//host/path), root-relative (/path), and
// document-relative (resolved against the base URL's path with its last
// segment dropped). Dot segments are deliberately not normalized, so a
// deeply relative reference can yield an unnormalized path; callers must
// tolerate that.
func ResolveRelative(ref, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return base.Scheme + ":" + ref
	}
	if strings.HasPrefix(ref, "/") {
		return base.Scheme + "://" + base.Host + ref
	}
	dir := path.Dir(base.Path)
	if dir == "." || dir == "/" {
		dir = ""
	}
	return base.Scheme + "://" + base.Host + dir + "/" + ref
}

// HasScheme reports whether ref is already an absolute URL.
func HasScheme(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && u.Scheme != ""
}

// ArchiveEntryName maps a page URL to its deterministic archive path:
// the URL path with each segment slugified, joined by the original
// directory separators, with ".html" appended. An empty path becomes
// "index.html". Slug hyphens never collide with directory boundaries
// because slugification happens per segment.
func ArchiveEntryName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return "index.html"
	}
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		slug := slugifySegment(seg)
		if slug == "" {
			continue
		}
		out = append(out, slug)
	}
	if len(out) == 0 {
		return "index.html"
	}
	return strings.Join(out, "/") + ".html"
}

func slugifySegment(seg string) string {
	slug := segmentSlugger.ReplaceAllString(strings.ToLower(seg), "-")
	return strings.Trim(slug, "-")
}

// RelativeAssetPath returns absoluteURL's path relative to siteRoot when
// it is same-origin, so the exported HTML references files at the same
// relative location inside the archive. Cross-origin URLs are returned
// unchanged.
func RelativeAssetPath(absoluteURL, siteRoot string) string {
	root := strings.TrimSuffix(siteRoot, "/") + "/"
	if strings.HasPrefix(absoluteURL, root) {
		return strings.TrimPrefix(absoluteURL, root)
	}
	return absoluteURL
}

// SameOrigin reports whether rawURL shares a host with siteRoot.
func SameOrigin(rawURL, siteRoot string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	root, err := url.Parse(siteRoot)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, root.Host)
}

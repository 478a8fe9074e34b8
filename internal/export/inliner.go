package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// InlineRules names the host-platform markup the inliner strips from
// exported pages.
type InlineRules struct {
	// DynamicClass marks elements rendered per-request; any element whose
	// class attribute contains it is removed.
	DynamicClass string
	// ToolbarID is the element ID of the host's admin toolbar.
	ToolbarID string
	// EditOriginRel is the rel value of the link advertising the edit
	// endpoint.
	EditOriginRel string
	// InternalAssetMarker identifies scripts and stylesheets served from
	// the host platform's internal asset path.
	InternalAssetMarker string
}

// DefaultInlineRules returns the WordPress markers the exporter was built
// against.
func DefaultInlineRules() InlineRules {
	return InlineRules{
		DynamicClass:        "dynamic-class",
		ToolbarID:           "wpadminbar",
		EditOriginRel:       "edituri",
		InternalAssetMarker: "wp-includes",
	}
}

// assetAttributes maps element names to the attribute carrying a URL that
// must be rewritten to a site-root-relative path.
var assetAttributes = []struct {
	tag  string
	attr string
}{
	{"img", "src"},
	{"link", "href"},
	{"script", "src"},
	{"source", "src"},
	{"audio", "src"},
	{"video", "src"},
	{"track", "src"},
}

// Inliner turns a fetched page into self-contained HTML: same-origin
// stylesheets and scripts are embedded, asset references are rewritten to
// relative paths, and dynamic host-only markup is stripped.
type Inliner struct {
	fetcher  Fetcher
	siteRoot string
	siteURL  *url.URL
	rules    InlineRules
	logger   *zap.Logger
}

// NewInliner constructs an Inliner bound to the site's origin.
func NewInliner(fetcher Fetcher, siteURL string, rules InlineRules, logger *zap.Logger) (*Inliner, error) {
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse site url %q: invalid absolute URL", siteURL)
	}
	return &Inliner{
		fetcher:  fetcher,
		siteRoot: siteURL,
		siteURL:  u,
		rules:    rules,
		logger:   logger,
	}, nil
}

// Transform rewrites the page. Malformed markup never fails a page: a
// document that cannot be parsed at all round-trips unchanged, and every
// failed resource fetch leaves the original element untouched.
func (in *Inliner) Transform(ctx context.Context, src []byte, pageURL string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(src))
	if err != nil {
		return src, nil
	}

	in.inlineStylesheets(ctx, doc, pageURL)
	in.inlineScripts(ctx, doc, pageURL)
	in.rewriteAssetPaths(doc, pageURL)
	in.removeDynamicElements(doc)

	out, err := doc.Html()
	if err != nil {
		return src, nil
	}
	return []byte(out), nil
}

func (in *Inliner) inlineStylesheets(ctx context.Context, doc *goquery.Document, pageURL string) {
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		css, ok := in.fetchSameOrigin(ctx, href, pageURL)
		if !ok {
			return
		}
		s.ReplaceWithNodes(rawTextElement(atom.Style, css))
	})
}

func (in *Inliner) inlineScripts(ctx context.Context, doc *goquery.Document, pageURL string) {
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		js, ok := in.fetchSameOrigin(ctx, src, pageURL)
		if !ok {
			return
		}
		s.ReplaceWithNodes(rawTextElement(atom.Script, js))
	})
}

// rewriteAssetPaths runs after inlining so it also normalizes any link or
// script reference the inline steps left untouched.
func (in *Inliner) rewriteAssetPaths(doc *goquery.Document, pageURL string) {
	for _, target := range assetAttributes {
		selector := fmt.Sprintf("%s[%s]", target.tag, target.attr)
		attr := target.attr
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			val, ok := s.Attr(attr)
			if !ok || val == "" {
				return
			}
			abs := val
			if !HasScheme(abs) {
				abs = ResolveRelative(abs, pageURL)
			}
			s.SetAttr(attr, RelativeAssetPath(abs, in.siteRoot))
		})
	}
}

func (in *Inliner) removeDynamicElements(doc *goquery.Document) {
	stripComments(doc.Get(0))

	selectors := []string{
		fmt.Sprintf("[class*=%q]", in.rules.DynamicClass),
		"form",
		"#" + in.rules.ToolbarID,
		fmt.Sprintf("link[rel=%q]", in.rules.EditOriginRel),
		`meta[name="generator"]`,
		fmt.Sprintf("script[src*=%q]", in.rules.InternalAssetMarker),
		fmt.Sprintf("link[href*=%q]", in.rules.InternalAssetMarker),
	}
	for _, selector := range selectors {
		// Repeat the query until nothing matches: removal re-indexes the
		// tree and a single pass can skip siblings of removed nodes.
		for {
			sel := doc.Find(selector)
			if sel.Length() == 0 {
				break
			}
			sel.Remove()
		}
	}
}

// fetchSameOrigin resolves ref against pageURL and fetches it when it
// shares the site's host. Cross-origin references and failed fetches
// report ok=false so the caller leaves the original element alone.
func (in *Inliner) fetchSameOrigin(ctx context.Context, ref, pageURL string) (string, bool) {
	abs := ref
	if !HasScheme(abs) {
		abs = ResolveRelative(abs, pageURL)
	}
	u, err := url.Parse(abs)
	if err != nil || !SameOrigin(abs, in.siteRoot) {
		return "", false
	}
	body, err := in.fetcher.Fetch(ctx, u.String())
	if err != nil || len(body) == 0 {
		in.logger.Debug("resource inline skipped",
			zap.String("url", abs),
			zap.Error(err),
		)
		return "", false
	}
	return string(body), true
}

// rawTextElement builds a style or script element whose content is a raw
// text node, so the serializer emits it verbatim instead of re-parsing a
// fragment that may itself contain markup.
func rawTextElement(a atom.Atom, content string) *html.Node {
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
	}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: content})
	return el
}

func stripComments(n *html.Node) {
	if n == nil {
		return
	}
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
			continue
		}
		stripComments(c)
	}
}

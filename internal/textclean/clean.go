// Package textclean turns markup-bearing docstrings into plain text.
// It strips tags, drops script/style and (optionally) embedded code
// blocks, decodes entities, and normalizes whitespace. Results are
// cached by content hash because docstrings repeat heavily across
// large datasets.
package textclean

import (
	"crypto/sha256"
	"html"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	xhtml "golang.org/x/net/html"
)

// Options configures a Cleaner.
type Options struct {
	// StripHTML enables tag stripping. When false, Clean only
	// normalizes whitespace.
	StripHTML bool

	// DropCodeBlocks removes <pre> and <code> subtrees entirely
	// rather than keeping their text.
	DropCodeBlocks bool

	// CollapseWhitespace folds whitespace runs into single spaces.
	CollapseWhitespace bool

	// CacheSize is the number of cleaned results to keep. Zero
	// disables the cache.
	CacheSize int
}

// DefaultOptions returns the options used by the build pipeline when
// nothing is configured.
func DefaultOptions() Options {
	return Options{
		StripHTML:          true,
		DropCodeBlocks:     true,
		CollapseWhitespace: true,
		CacheSize:          1024,
	}
}

// Cleaner converts markup to plain text.
type Cleaner struct {
	opts  Options
	cache *lru.Cache[[32]byte, string]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a Cleaner. The cache is only allocated when
// Options.CacheSize is positive.
func New(opts Options) (*Cleaner, error) {
	c := &Cleaner{opts: opts}
	if opts.CacheSize > 0 {
		cache, err := lru.New[[32]byte, string](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

// Clean returns the plain-text form of text.
func (c *Cleaner) Clean(text string) string {
	if !c.opts.StripHTML || !strings.ContainsRune(text, '<') {
		// No markup to parse. Entities can still appear in plain text.
		if strings.ContainsRune(text, '&') {
			text = html.UnescapeString(text)
		}
		return c.normalize(text)
	}

	if c.cache != nil {
		key := sha256.Sum256([]byte(text))
		if cached, ok := c.cache.Get(key); ok {
			c.hits.Add(1)
			return cached
		}
		c.misses.Add(1)
		out := c.normalize(c.extract(text))
		c.cache.Add(key, out)
		return out
	}

	return c.normalize(c.extract(text))
}

// CacheStats reports cache hit and miss counts.
func (c *Cleaner) CacheStats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// extract parses markup and collects the text nodes that survive the
// skip rules. Entities are decoded by the parser.
func (c *Cleaner) extract(markup string) string {
	doc, err := xhtml.Parse(strings.NewReader(markup))
	if err != nil {
		// Parse only fails when the reader fails; a strings.Reader
		// cannot. Fall back to the raw input regardless.
		return markup
	}

	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.ElementNode:
			if c.skipElement(n.Data) {
				// A dropped subtree still separates the text around
				// it, otherwise words on either side would fuse.
				b.WriteByte('\n')
				return
			}
		case xhtml.TextNode:
			b.WriteString(n.Data)
		case xhtml.CommentNode, xhtml.DoctypeNode:
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		// Block boundaries become whitespace so adjacent text does
		// not fuse into one word.
		if n.Type == xhtml.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	return b.String()
}

// skipElement reports whether an element subtree is dropped entirely.
func (c *Cleaner) skipElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript":
		return true
	case "pre", "code":
		return c.opts.DropCodeBlocks
	}
	return false
}

func (c *Cleaner) normalize(s string) string {
	if c.opts.CollapseWhitespace {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.TrimSpace(s)
}

// blockElements end a text run when stripped.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true,
	"ol": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "blockquote": true, "tr": true,
	"table": true, "section": true, "article": true,
}

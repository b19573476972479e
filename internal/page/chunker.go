package page

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrEmptyDocument indicates a document with no content-bearing text.
var ErrEmptyDocument = errors.New("document has no content")

// maxPathDepth caps the number of selectors in a DOM path.
const maxPathDepth = 6

// skipTags are subtrees excluded from accumulation entirely.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"aside":    true,
	"iframe":   true,
	"noscript": true,
	"head":     true,
	"template": true,
}

// blockTags delimit chunk boundaries. Text belongs to its nearest block
// ancestor; inline elements flow through without breaking continuity.
var blockTags = map[string]bool{
	"body": true, "main": true, "article": true, "section": true,
	"div": true, "p": true, "blockquote": true, "pre": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"table": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"figure": true, "figcaption": true, "form": true, "fieldset": true,
}

// Chunk is an immutable content unit with structural provenance.
type Chunk struct {
	// Index is the chunk's position in document order.
	Index int

	// TokenCount is the number of codec tokens in Text. Never exceeds
	// the configured bound.
	TokenCount int

	// Text is the whitespace-normalized plain text.
	Text string

	// HTML is the raw markup of the anchor element, size-capped.
	HTML string

	// DOMPath locates the anchor element: root-to-node selectors
	// joined with " > ", depth-capped.
	DOMPath string
}

// Config holds chunker configuration.
type Config struct {
	// MaxTokens is the per-chunk token bound.
	MaxTokens int

	// MinTextLen skips anchors with less text than this (bytes).
	MinTextLen int

	// MaxHTMLLen caps the markup slice kept per chunk (bytes).
	MaxHTMLLen int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 500
	}
	if c.MinTextLen == 0 {
		c.MinTextLen = 20
	}
	if c.MaxHTMLLen == 0 {
		c.MaxHTMLLen = 2000
	}
}

// Chunker splits documents into token-bounded chunks.
type Chunker struct {
	config Config
	codec  TokenCodec
}

// NewChunker creates a Chunker using the given token codec.
func NewChunker(cfg Config, codec TokenCodec) (*Chunker, error) {
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	cfg.ApplyDefaults()
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", cfg.MaxTokens)
	}
	return &Chunker{config: cfg, codec: codec}, nil
}

// unit is a run of text nodes sharing one block anchor. Units are the
// natural chunk boundaries; oversized units split at token boundaries.
type unit struct {
	anchor *html.Node
	path   string
	parts  []string
}

// Chunk splits the document into ordered chunks. Re-chunking the same
// markup yields identical chunks: traversal order, anchoring, and token
// splitting are all deterministic.
func (c *Chunker) Chunk(doc *Document) ([]Chunk, error) {
	root, err := html.Parse(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	var units []*unit
	scope := &blockScope{}
	c.walk(root, scope, nil, &units)

	chunks := make([]Chunk, 0, len(units))
	for _, u := range units {
		text := collapseWhitespace(strings.Join(u.parts, " "))
		if len(text) < c.config.MinTextLen {
			continue
		}

		snippet := renderCapped(u.anchor, c.config.MaxHTMLLen)
		tokens := c.codec.Encode(text)
		if len(tokens) == 0 {
			continue
		}

		if len(tokens) <= c.config.MaxTokens {
			chunks = append(chunks, Chunk{
				TokenCount: len(tokens),
				Text:       text,
				HTML:       snippet,
				DOMPath:    u.path,
			})
			continue
		}

		// A single anchor larger than the bound splits at token
		// boundaries; every piece keeps the anchor's path.
		for start := 0; start < len(tokens); start += c.config.MaxTokens {
			end := start + c.config.MaxTokens
			if end > len(tokens) {
				end = len(tokens)
			}
			chunks = append(chunks, Chunk{
				TokenCount: end - start,
				Text:       strings.TrimSpace(c.codec.Decode(tokens[start:end])),
				HTML:       snippet,
				DOMPath:    u.path,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks, nil
}

// blockScope tracks the open unit for the nearest block ancestor.
type blockScope struct {
	anchor *html.Node
	path   string
	cur    *unit
}

func (c *Chunker) walk(n *html.Node, scope *blockScope, stack []string, units *[]*unit) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" || scope.anchor == nil {
			return
		}
		if scope.cur == nil {
			scope.cur = &unit{anchor: scope.anchor, path: scope.path}
			*units = append(*units, scope.cur)
		}
		scope.cur.parts = append(scope.cur.parts, n.Data)

	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}
		stack = append(stack, selectorFor(n))

		if blockTags[n.Data] {
			inner := &blockScope{anchor: n, path: pathString(stack)}
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				c.walk(child, inner, stack, units)
			}
			// Closing a block ends any run in the enclosing scope:
			// text after this element starts a fresh chunk.
			scope.cur = nil
			return
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.walk(child, scope, stack, units)
		}

	case html.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.walk(child, scope, stack, units)
		}
	}
	// Comments and doctypes carry no content and do not break continuity.
}

// selectorFor builds a selector for an element: tag plus its first class,
// or its id when it has no class.
func selectorFor(n *html.Node) string {
	var id, class string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "class":
			if fields := strings.Fields(attr.Val); len(fields) > 0 {
				class = fields[0]
			}
		case "id":
			id = attr.Val
		}
	}
	switch {
	case class != "":
		return n.Data + "." + class
	case id != "":
		return n.Data + "#" + id
	default:
		return n.Data
	}
}

// pathString joins the deepest maxPathDepth selectors with " > ".
func pathString(stack []string) string {
	if len(stack) > maxPathDepth {
		stack = stack[len(stack)-maxPathDepth:]
	}
	return strings.Join(stack, " > ")
}

// collapseWhitespace normalizes all whitespace runs to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// renderCapped renders the node's markup, truncated to max bytes without
// splitting a UTF-8 sequence.
func renderCapped(n *html.Node, max int) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	s := buf.String()
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

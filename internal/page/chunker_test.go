package page

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCodec treats whitespace-separated words as tokens. It keeps the
// chunker tests independent of BPE vocabulary details.
type wordCodec struct {
	ids   map[string]int
	words []string
}

func newWordCodec() *wordCodec {
	return &wordCodec{ids: make(map[string]int)}
}

func (c *wordCodec) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i, w := range fields {
		id, ok := c.ids[w]
		if !ok {
			id = len(c.words)
			c.ids[w] = id
			c.words = append(c.words, w)
		}
		tokens[i] = id
	}
	return tokens
}

func (c *wordCodec) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = c.words[tok]
	}
	return strings.Join(words, " ")
}

func newTestChunker(t *testing.T, maxTokens int) *Chunker {
	t.Helper()
	chunker, err := NewChunker(Config{MaxTokens: maxTokens, MinTextLen: 1}, newWordCodec())
	require.NoError(t, err)
	return chunker
}

func mustDocument(t *testing.T, html string) *Document {
	t.Helper()
	doc, err := NewDocument("http://example.com/page", html)
	require.NoError(t, err)
	return doc
}

// repeatWords builds text of exactly n distinct words.
func repeatWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunker_BlockPerChunk(t *testing.T) {
	chunker := newTestChunker(t, 500)
	doc := mustDocument(t, `<html><body>
		<p>first paragraph of text</p>
		<p>second paragraph of text</p>
		<h2>a heading here</h2>
	</body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "first paragraph of text", chunks[0].Text)
	assert.Equal(t, "second paragraph of text", chunks[1].Text)
	assert.Equal(t, "a heading here", chunks[2].Text)

	wantTokens := []int{4, 4, 3}
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, wantTokens[i], chunk.TokenCount)
		assert.True(t, strings.HasSuffix(chunk.DOMPath, "p") || strings.HasSuffix(chunk.DOMPath, "h2"))
	}
}

func TestChunker_InlineElementsFlowThrough(t *testing.T) {
	chunker := newTestChunker(t, 500)
	doc := mustDocument(t, `<html><body><p>alpha <b>beta</b> <a href="/x">gamma</a> delta</p></body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha beta gamma delta", chunks[0].Text)
}

func TestChunker_SkipTagsDoNotBreakContinuity(t *testing.T) {
	chunker := newTestChunker(t, 500)
	doc := mustDocument(t, `<html><body><p>before <script>var x = 1;</script> after</p></body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "before after", chunks[0].Text)
}

func TestChunker_ExcludesNonContent(t *testing.T) {
	chunker := newTestChunker(t, 500)
	doc := mustDocument(t, `<html><body>
		<nav>site navigation links</nav>
		<header>big banner text</header>
		<p>the only real content</p>
		<footer>copyright notice text</footer>
	</body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "the only real content", chunks[0].Text)
}

func TestChunker_OversizedNodeSplitsAtTokenBoundaries(t *testing.T) {
	// The documented scenario: 1200 content tokens at a bound of 500
	// produce exactly three chunks of 500, 500, and 200 tokens.
	chunker := newTestChunker(t, 500)
	doc := mustDocument(t, "<html><body><p>"+repeatWords(1200)+"</p></body></html>")

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 500, chunks[0].TokenCount)
	assert.Equal(t, 500, chunks[1].TokenCount)
	assert.Equal(t, 200, chunks[2].TokenCount)

	// Pieces of one node share its structural path.
	assert.Equal(t, chunks[0].DOMPath, chunks[1].DOMPath)
	assert.Equal(t, chunks[1].DOMPath, chunks[2].DOMPath)

	// Order is document order and splits never lose or duplicate a token.
	assert.True(t, strings.HasPrefix(chunks[0].Text, "w0 "))
	assert.True(t, strings.HasPrefix(chunks[1].Text, "w500 "))
	assert.True(t, strings.HasPrefix(chunks[2].Text, "w1000 "))
}

func TestChunker_TokenConservation(t *testing.T) {
	codec := newWordCodec()
	chunker, err := NewChunker(Config{MaxTokens: 50, MinTextLen: 1}, codec)
	require.NoError(t, err)

	doc := mustDocument(t, `<html><body>
		<p>`+repeatWords(120)+`</p>
		<p>short paragraph</p>
		<div>`+repeatWords(50)+`</div>
	</body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)

	total := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 50)
		assert.Equal(t, len(codec.Encode(chunk.Text)), chunk.TokenCount)
		total += chunk.TokenCount
	}
	assert.Equal(t, 120+2+50, total)
}

func TestChunker_DOMPath(t *testing.T) {
	chunker := newTestChunker(t, 500)
	doc := mustDocument(t, `<html><body><div class="content main"><p id="intro">hello world text</p></div></body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "html > body > div.content > p#intro", chunks[0].DOMPath)
	assert.Contains(t, chunks[0].HTML, `<p id="intro">`)
}

func TestChunker_DOMPathDepthCapped(t *testing.T) {
	chunker := newTestChunker(t, 500)
	nested := "<html><body>"
	for i := 0; i < 8; i++ {
		nested += fmt.Sprintf(`<div class="l%d">`, i)
	}
	nested += "<p>deeply nested content</p>"
	nested += strings.Repeat("</div>", 8) + "</body></html>"

	chunks, err := chunker.Chunk(mustDocument(t, nested))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	selectors := strings.Split(chunks[0].DOMPath, " > ")
	assert.Len(t, selectors, maxPathDepth)
	assert.Equal(t, "p", selectors[len(selectors)-1])
}

func TestChunker_TextAfterNestedBlockStartsNewChunk(t *testing.T) {
	chunker := newTestChunker(t, 500)
	doc := mustDocument(t, `<html><body><div>leading div text<p>inner paragraph text</p>trailing div text</div></body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "leading div text", chunks[0].Text)
	assert.Equal(t, "inner paragraph text", chunks[1].Text)
	assert.Equal(t, "trailing div text", chunks[2].Text)
}

func TestChunker_MinTextLenSkipsNoise(t *testing.T) {
	chunker, err := NewChunker(Config{MaxTokens: 500, MinTextLen: 20}, newWordCodec())
	require.NoError(t, err)

	doc := mustDocument(t, `<html><body>
		<p>ok</p>
		<p>this paragraph is long enough to keep</p>
	</body></html>`)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "this paragraph is long enough to keep", chunks[0].Text)
}

func TestChunker_EmptyDocument(t *testing.T) {
	chunker := newTestChunker(t, 500)

	for _, markup := range []string{
		"<html><body></body></html>",
		"<html><body><script>only(code)</script></body></html>",
		"<html><body><!-- just a comment --></body></html>",
	} {
		_, err := chunker.Chunk(mustDocument(t, markup))
		assert.ErrorIs(t, err, ErrEmptyDocument, "markup: %s", markup)
	}
}

func TestChunker_Deterministic(t *testing.T) {
	markup := `<html><body><div class="a"><p>` + repeatWords(90) + `</p><p>tail of the page</p></div></body></html>`

	chunker := newTestChunker(t, 40)
	doc := mustDocument(t, markup)

	first, err := chunker.Chunk(doc)
	require.NoError(t, err)
	second, err := chunker.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

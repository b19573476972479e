// Package search orchestrates the fetch, chunk, embed, index, and
// rank pipeline behind a single Search operation.
package search

// Request is a search over the content of one web page.
type Request struct {
	// URL is the page to search. Must be absolute http or https.
	URL string `json:"url"`

	// Query is the natural-language question to rank chunks against.
	Query string `json:"query"`
}

// Result is one ranked chunk of the page.
type Result struct {
	// Score is the similarity score clamped to [0, 1].
	Score float64 `json:"score"`

	// Percentage is the score as a whole percentage, capped at 100.
	Percentage int `json:"percentage"`

	// DOMPath locates the chunk's block in the page.
	DOMPath string `json:"dom_path"`

	// ChunkText is the chunk's plain text.
	ChunkText string `json:"chunk_text"`

	// ChunkHTML is the capped HTML snippet of the chunk's block.
	ChunkHTML string `json:"chunk_html"`
}

// Response is the ranked result set for a request.
type Response struct {
	// Results are ranked chunks, best first, deduplicated.
	Results []Result `json:"results"`

	// TotalChunks is how many chunks the page produced at index time.
	TotalChunks int `json:"total_chunks"`

	// Query echoes the trimmed query.
	Query string `json:"query"`
}

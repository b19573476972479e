package search

import (
	"math"
	"strings"

	"github.com/fyrsmithlabs/pagequery/internal/vectorstore"
)

// rank converts scored chunks into client results: clamps scores into
// [0, 1], rounds them to four decimal places, derives percentages,
// drops near-duplicate texts, and keeps the top n. Input is already
// ordered best first by the store.
func rank(scored []vectorstore.ScoredChunk, topN int) []Result {
	results := make([]Result, 0, topN)
	seen := make(map[string]struct{}, len(scored))

	for _, chunk := range scored {
		if len(results) >= topN {
			break
		}

		sig := textSignature(chunk.Text)
		if sig == "" {
			continue
		}
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}

		score := float64(chunk.Score)
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		// Rounding to 4dp absorbs float32 conversion noise so a 0.9
		// similarity reports 90, not 89.
		score = math.Round(score*10000) / 10000

		results = append(results, Result{
			Score:      score,
			Percentage: int(score * 100),
			DOMPath:    chunk.DOMPath,
			ChunkText:  chunk.Text,
			ChunkHTML:  chunk.HTML,
		})
	}

	return results
}

// textSignature collapses whitespace so trivially reformatted chunks
// dedupe against each other.
func textSignature(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

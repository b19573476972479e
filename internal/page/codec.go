package page

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCodec converts text to and from token sequences. The chunker counts
// and splits on these tokens; the embedding model may re-tokenize
// independently behind its own boundary.
type TokenCodec interface {
	// Encode converts text into a token sequence.
	Encode(text string) []int

	// Decode converts a token sequence back into text.
	Decode(tokens []int) string
}

// tiktokenCodec wraps a tiktoken BPE encoding.
type tiktokenCodec struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCodec returns a TokenCodec backed by the named tiktoken
// encoding (e.g. "cl100k_base").
func NewTiktokenCodec(encoding string) (TokenCodec, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", encoding, err)
	}
	return &tiktokenCodec{enc: enc}, nil
}

func (c *tiktokenCodec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c *tiktokenCodec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}

// Package tokens provides token accounting for conversation turns. Counts
// are used for logging and session accounting only; nothing enforces limits
// on them here.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens in plain text.
type Counter interface {
	CountText(text string) int
}

// TiktokenCounter counts with a real BPE codec. The agent runtime does not
// expose its own tokenizer, so cl100k_base is used as a reasonable stand-in;
// counts are estimates, which is all turn accounting needs.
type TiktokenCounter struct {
	once     sync.Once
	codec    tokenizer.Codec
	initErr  error
	fallback Counter
}

// NewCounter returns a TiktokenCounter that degrades to a character-based
// estimator when the codec cannot be loaded.
func NewCounter() *TiktokenCounter {
	return &TiktokenCounter{fallback: NewEstimator()}
}

func (c *TiktokenCounter) CountText(text string) int {
	c.once.Do(func() {
		c.codec, c.initErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if c.initErr != nil || c.codec == nil {
		return c.fallback.CountText(text)
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return c.fallback.CountText(text)
	}
	return len(ids)
}

// Estimator approximates token counts by character length.
type Estimator struct {
	// CharsPerToken is the average characters per token.
	CharsPerToken float64
}

// NewEstimator creates an estimator with the usual 4-chars-per-token ratio.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

func (e *Estimator) CountText(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text)) / e.CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

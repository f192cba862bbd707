// Package corpus serves writing samples that steer the draft voice.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"NewsPoster/internal/ports"
)

// FileCorpus loads style examples from a JSON document of the form
// {"examples":[{"text":"..."}]}.
type FileCorpus struct {
	mu       sync.Mutex
	examples []string
	rng      *rand.Rand
}

var _ ports.StyleCorpus = (*FileCorpus)(nil)

type corpusFile struct {
	Examples []struct {
		Text string `json:"text"`
	} `json:"examples"`
}

// LoadFile reads the corpus once; blank examples are skipped.
func LoadFile(path string) (*FileCorpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style corpus: %w", err)
	}
	return Parse(raw)
}

// Parse builds a corpus from raw JSON.
func Parse(raw []byte) (*FileCorpus, error) {
	var doc corpusFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode style corpus: %w", err)
	}

	examples := make([]string, 0, len(doc.Examples))
	for _, ex := range doc.Examples {
		if text := strings.TrimSpace(ex.Text); text != "" {
			examples = append(examples, text)
		}
	}
	return New(examples), nil
}

// New wraps an in-memory list of examples.
func New(examples []string) *FileCorpus {
	return &FileCorpus{
		examples: append([]string(nil), examples...),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// SampleStyles returns min(n, len) distinct examples in random order.
func (c *FileCorpus) SampleStyles(ctx context.Context, n int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 || len(c.examples) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	idx := c.rng.Perm(len(c.examples))
	c.mu.Unlock()

	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, c.examples[i])
	}
	return out, nil
}

// Len reports how many examples were loaded.
func (c *FileCorpus) Len() int {
	return len(c.examples)
}

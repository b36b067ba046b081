package command

import (
	"sort"
	"strings"
)

// Corpus accumulates the word set and the longest utterance length of an
// instruction collection.
type Corpus struct {
	words  map[string]struct{}
	maxLen int
}

func NewCorpus() *Corpus {
	return &Corpus{words: map[string]struct{}{}}
}

// Add folds whole sentences into the corpus.
func (c *Corpus) Add(sentences ...string) {
	for _, s := range sentences {
		fields := strings.Fields(s)
		for _, w := range fields {
			c.words[w] = struct{}{}
		}
		if len(fields) > c.maxLen {
			c.maxLen = len(fields)
		}
	}
}

// AddSpan folds a precomputed word set and length bound into the corpus.
func (c *Corpus) AddSpan(words []string, maxLen int) {
	for _, w := range words {
		c.words[w] = struct{}{}
	}
	if maxLen > c.maxLen {
		c.maxLen = maxLen
	}
}

// Words returns the sorted unique words.
func (c *Corpus) Words() []string {
	out := make([]string, 0, len(c.words))
	for w := range c.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// MaxLen is the word count of the longest utterance seen.
func (c *Corpus) MaxLen() int {
	return c.maxLen
}

// Len is the number of unique words.
func (c *Corpus) Len() int {
	return len(c.words)
}

// ParseInstructions returns the sorted unique words of the instructions and
// the length of the longest one.
func ParseInstructions(instructions []string) ([]string, int) {
	c := NewCorpus()
	c.Add(instructions...)
	return c.Words(), c.MaxLen()
}

package vocab

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Pad is the padding token. It always owns index 0.
const Pad = "<pad>"

var (
	ErrUnknownWord      = errors.New("word not in vocabulary")
	ErrIndexOutOfRange  = errors.New("index outside vocabulary")
	ErrPadTooShort      = errors.New("pad target shorter than sentence")
	ErrReservedPadToken = errors.New("corpus must not contain the pad token")
)

// Vocabulary is a bijection between words and indices.
type Vocabulary struct {
	words []string
	index map[string]int
}

// New builds a vocabulary from any word list: the pad token first, then the
// sorted unique words.
func New(words []string) (*Vocabulary, error) {
	seen := make(map[string]struct{}, len(words))
	unique := make([]string, 0, len(words))
	for _, w := range words {
		if w == Pad {
			return nil, ErrReservedPadToken
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		unique = append(unique, w)
	}
	sort.Strings(unique)

	v := &Vocabulary{
		words: append([]string{Pad}, unique...),
		index: make(map[string]int, len(unique)+1),
	}
	for i, w := range v.words {
		v.index[w] = i
	}
	return v, nil
}

// FromSentences splits every sentence on whitespace and builds a vocabulary
// over the resulting words.
func FromSentences(sentences []string) (*Vocabulary, error) {
	var words []string
	for _, s := range sentences {
		words = append(words, strings.Fields(s)...)
	}
	return New(words)
}

// Len counts the pad token.
func (v *Vocabulary) Len() int {
	return len(v.words)
}

// Words returns the vocabulary in index order.
func (v *Vocabulary) Words() []string {
	return append([]string(nil), v.words...)
}

// WordToIndex looks up a single word.
func (v *Vocabulary) WordToIndex(word string) (int, error) {
	idx, ok := v.index[word]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWord, word)
	}
	return idx, nil
}

// IndexToWord looks up a single index.
func (v *Vocabulary) IndexToWord(idx int) (string, error) {
	if idx < 0 || idx >= len(v.words) {
		return "", fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, idx, len(v.words))
	}
	return v.words[idx], nil
}

// Encode maps the space separated words of a sentence to indices.
func (v *Vocabulary) Encode(sentence string) ([]int, error) {
	fields := strings.Fields(sentence)
	out := make([]int, len(fields))
	for i, w := range fields {
		idx, err := v.WordToIndex(w)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Decode is the inverse of Encode on in-vocabulary input.
func (v *Vocabulary) Decode(indices []int) (string, error) {
	words := make([]string, len(indices))
	for i, idx := range indices {
		w, err := v.IndexToWord(idx)
		if err != nil {
			return "", err
		}
		words[i] = w
	}
	return strings.Join(words, " "), nil
}

// PadSentence appends pad words until the sentence holds targetLen words.
// It never truncates.
func PadSentence(sentence string, targetLen int) (string, error) {
	fields := strings.Fields(sentence)
	if targetLen < len(fields) {
		return "", fmt.Errorf("%w: %d words, target %d", ErrPadTooShort, len(fields), targetLen)
	}
	for len(fields) < targetLen {
		fields = append(fields, Pad)
	}
	return strings.Join(fields, " "), nil
}

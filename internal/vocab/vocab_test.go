package vocab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lingotask/internal/command"
	"lingotask/internal/property"
)

func TestPadOwnsIndexZero(t *testing.T) {
	v, err := FromSentences([]string{"hello world", "it is sunny"})
	require.NoError(t, err)
	w, err := v.IndexToWord(0)
	require.NoError(t, err)
	require.Equal(t, Pad, w)
	require.Equal(t, 6, v.Len())

	empty, err := New(nil)
	require.NoError(t, err)
	require.Equal(t, []string{Pad}, empty.Words())
}

func TestSortedIndices(t *testing.T) {
	v, err := FromSentences([]string{"sunny hello", "hello"})
	require.NoError(t, err)
	idx, err := v.WordToIndex("hello")
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	idx, err = v.WordToIndex("sunny")
	require.NoError(t, err)
	require.Equal(t, 2, idx)

	padded, err := PadSentence("hello sunny", 5)
	require.NoError(t, err)
	require.Equal(t, "hello sunny <pad> <pad> <pad>", padded)
	enc, err := v.Encode(padded)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 0, 0, 0}, enc)
}

func TestLookupErrors(t *testing.T) {
	v, err := FromSentences([]string{"lift the red"})
	require.NoError(t, err)

	_, err = v.Encode("lift the blue")
	require.ErrorIs(t, err, ErrUnknownWord)

	_, err = v.Decode([]int{1, v.Len()})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = v.Decode([]int{-1})
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = PadSentence("lift the red", 2)
	require.ErrorIs(t, err, ErrPadTooShort)

	_, err = New([]string{"a", Pad})
	require.ErrorIs(t, err, ErrReservedPadToken)
}

func TestRoundTripOverGeneratedInstructions(t *testing.T) {
	g := command.NewGenerator(true, true)
	var all []string
	for _, pair := range []command.Pair{
		{property.Red, property.Cube},
		{property.Heavy, property.Blue},
		{property.Cylinder, property.None},
	} {
		for _, class := range command.Classes {
			out, err := g.Generate(command.Request{
				Class:  class,
				Verbs:  []string{"lift", "raise", "hoist"},
				Target: pair,
				Other:  command.Pair{property.Small, property.Green},
			})
			require.NoError(t, err)
			all = append(all, out...)
		}
	}
	words, maxLen := command.ParseInstructions(all)
	v, err := New(words)
	require.NoError(t, err)
	require.Equal(t, 1+len(words), v.Len())

	for _, s := range all {
		padded, err := PadSentence(s, maxLen)
		require.NoError(t, err)
		enc, err := v.Encode(padded)
		require.NoError(t, err)
		require.Len(t, enc, maxLen)
		dec, err := v.Decode(enc)
		require.NoError(t, err)
		require.Equal(t, padded, dec)
	}
}

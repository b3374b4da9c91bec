// ABOUTME: Tests for the line framer
// ABOUTME: Validates chunk-split invariance against adversarial boundaries

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramer_CompleteLines(t *testing.T) {
	var f Framer

	lines := f.Feed([]byte("one\ntwo\n"))
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestFramer_RetainsFragment(t *testing.T) {
	var f Framer

	lines := f.Feed([]byte("par"))
	assert.Empty(t, lines)

	lines = f.Feed([]byte("tial\nnext"))
	assert.Equal(t, []string{"partial"}, lines)

	assert.Equal(t, "next", f.Flush())
}

func TestFramer_FlushEmpty(t *testing.T) {
	var f Framer
	assert.Equal(t, "", f.Flush())

	f.Feed([]byte("whole line\n"))
	assert.Equal(t, "", f.Flush())
}

func TestFramer_BlankLines(t *testing.T) {
	var f Framer

	lines := f.Feed([]byte("\n\na\n"))
	assert.Equal(t, []string{"", "", "a"}, lines)
}

// feedInChunks splits input into chunks of the given size and collects every
// line the framer produces, plus the flushed remainder.
func feedInChunks(input string, size int) []string {
	var f Framer
	var lines []string
	data := []byte(input)
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		lines = append(lines, f.Feed(data[:n])...)
		data = data[n:]
	}
	if rest := f.Flush(); rest != "" {
		lines = append(lines, rest)
	}
	return lines
}

func TestFramer_SplitInvariance(t *testing.T) {
	input := "data:{\"event\":\"start\",\"model\":\"m1\"}\n" +
		"data:{\"token\":\"Hel\"}\n" +
		"data:{\"token\":\"lo\"}\n" +
		"\n" +
		"data:{\"event\":\"complete\",\"message_id\":\"42\"}\n"

	want := feedInChunks(input, len(input))
	for size := 1; size <= len(input); size++ {
		got := feedInChunks(input, size)
		assert.Equal(t, want, got, "chunk size %d", size)
	}
}

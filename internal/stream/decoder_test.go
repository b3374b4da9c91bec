// ABOUTME: Tests for the reply stream decoder
// ABOUTME: Validates event decoding, mid-JSON splits, cancellation and truncation

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorhq/parlor-go/internal/api"
)

// recordingHandler captures every decoded event for assertions.
type recordingHandler struct {
	starts   []string
	partials []string
	messages []api.ChatMessage
}

func (h *recordingHandler) OnStart(model, mode string) {
	h.starts = append(h.starts, model)
}

func (h *recordingHandler) OnToken(partial string) {
	h.partials = append(h.partials, partial)
}

func (h *recordingHandler) OnComplete(msg api.ChatMessage) {
	h.messages = append(h.messages, msg)
}

func TestDecoder_ScenarioMidJSONSplit(t *testing.T) {
	h := &recordingHandler{}
	d := NewDecoder(h, nil)

	chunks := []string{
		"data:{\"event\":\"start\",\"model\":\"m1\"}\n",
		"data:{\"to",
		"ken\":\"Hel\"}\n",
		"data:{\"token\":\"lo\"}\n",
		"data:{\"event\":\"complete\",\"message_id\":\"42\"}\n",
	}
	for _, c := range chunks {
		require.NoError(t, d.Feed([]byte(c)))
	}

	assert.Equal(t, []string{"m1"}, h.starts)
	assert.Equal(t, []string{"Hel", "Hello"}, h.partials)
	require.Len(t, h.messages, 1)
	assert.Equal(t, "42", h.messages[0].ID)
	assert.Equal(t, "Hello", h.messages[0].Content)
	assert.Equal(t, api.RoleAssistant, h.messages[0].Role)
	assert.Equal(t, "", d.Live(), "live buffer must be empty after complete")
	assert.True(t, d.Completed())
}

func TestDecoder_TokensConcatenate(t *testing.T) {
	h := &recordingHandler{}
	d := NewDecoder(h, nil)

	parts := []string{"Th", "e qu", "ick ", "fox"}
	for _, p := range parts {
		require.NoError(t, d.Feed([]byte("data:{\"token\":\""+p+"\"}\n")))
	}
	require.NoError(t, d.Feed([]byte("data:{\"event\":\"complete\",\"message_id\":\"m-1\"}\n")))

	require.Len(t, h.messages, 1)
	assert.Equal(t, "The quick fox", h.messages[0].Content)
	assert.Equal(t, "", d.Live())
}

func TestDecoder_ChunkSplitInvariance(t *testing.T) {
	input := "data:{\"event\":\"start\",\"model\":\"m2\",\"mode\":\"chat\"}\n" +
		"data:{\"token\":\"a\"}\n" +
		"\n" +
		"data:{\"token\":\"b\"}\n" +
		"data:{\"event\":\"escalation_offered\"}\n" +
		"data:{\"event\":\"complete\",\"message_id\":\"77\"}\n"

	whole := &recordingHandler{}
	require.NoError(t, NewDecoder(whole, nil).Feed([]byte(input)))

	for size := 1; size <= len(input); size++ {
		h := &recordingHandler{}
		d := NewDecoder(h, nil)
		data := []byte(input)
		for len(data) > 0 {
			n := size
			if n > len(data) {
				n = len(data)
			}
			require.NoError(t, d.Feed(data[:n]))
			data = data[n:]
		}
		assert.Equal(t, whole.starts, h.starts, "chunk size %d", size)
		assert.Equal(t, whole.partials, h.partials, "chunk size %d", size)
		require.Len(t, h.messages, 1, "chunk size %d", size)
		assert.Equal(t, whole.messages[0].ID, h.messages[0].ID)
		assert.Equal(t, whole.messages[0].Content, h.messages[0].Content)
	}
}

func TestDecoder_MalformedFrameSkipped(t *testing.T) {
	h := &recordingHandler{}
	d := NewDecoder(h, nil)

	require.NoError(t, d.Feed([]byte("data:{not json at all\n")))
	require.NoError(t, d.Feed([]byte("data:{\"token\":\"ok\"}\n")))

	assert.Equal(t, []string{"ok"}, h.partials)
}

func TestDecoder_BlankAndUnknownLines(t *testing.T) {
	h := &recordingHandler{}
	d := NewDecoder(h, nil)

	require.NoError(t, d.Feed([]byte("\n")))
	require.NoError(t, d.Feed([]byte(": keepalive\n")))
	require.NoError(t, d.Feed([]byte("data:{\"event\":\"mystery\"}\n")))

	assert.Empty(t, h.partials)
	assert.Empty(t, h.messages)
}

func TestDecoder_ErrorEventAborts(t *testing.T) {
	h := &recordingHandler{}
	d := NewDecoder(h, nil)

	err := d.Feed([]byte("data:{\"event\":\"error\",\"message\":\"model overloaded\"}\n"))
	var replyErr *ReplyError
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, "model overloaded", replyErr.Message)
}

func TestDecode_FullStream(t *testing.T) {
	input := "data:{\"event\":\"start\",\"model\":\"m1\"}\n" +
		"data:{\"token\":\"hey\"}\n" +
		"data:{\"event\":\"complete\",\"message_id\":\"9\"}\n"

	h := &recordingHandler{}
	err := Decode(context.Background(), strings.NewReader(input), NewDecoder(h, nil))
	require.NoError(t, err)
	require.Len(t, h.messages, 1)
	assert.Equal(t, "hey", h.messages[0].Content)
}

func TestDecode_TruncatedStream(t *testing.T) {
	// Stream closes after tokens without a complete event.
	input := "data:{\"token\":\"half\"}\n"

	h := &recordingHandler{}
	err := Decode(context.Background(), strings.NewReader(input), NewDecoder(h, nil))
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Empty(t, h.messages)
}

func TestDecode_FinalLineWithoutNewline(t *testing.T) {
	input := "data:{\"token\":\"hi\"}\n" +
		"data:{\"event\":\"complete\",\"message_id\":\"3\"}"

	h := &recordingHandler{}
	err := Decode(context.Background(), strings.NewReader(input), NewDecoder(h, nil))
	require.NoError(t, err)
	require.Len(t, h.messages, 1)
	assert.Equal(t, "hi", h.messages[0].Content)
}

func TestDecode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &recordingHandler{}
	err := Decode(ctx, strings.NewReader("data:{\"token\":\"x\"}\n"), NewDecoder(h, nil))
	assert.ErrorIs(t, err, ErrAborted)
}

// failingReader delivers some data, then a read error.
type failingReader struct {
	data []byte
	err  error
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		n := copy(p, r.data)
		return n, nil
	}
	return 0, r.err
}

func TestDecode_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := &failingReader{data: []byte("data:{\"token\":\"x\"}\n"), err: boom}

	h := &recordingHandler{}
	err := Decode(context.Background(), r, NewDecoder(h, nil))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAborted)
}

func TestDecode_EOFImmediately(t *testing.T) {
	h := &recordingHandler{}
	err := Decode(context.Background(), io.MultiReader(), NewDecoder(h, nil))
	assert.ErrorIs(t, err, ErrTruncated)
}

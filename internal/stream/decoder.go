// ABOUTME: Decoder for the newline-delimited agent reply event stream
// ABOUTME: Turns data-prefixed JSON frames into start/token/complete events

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/parlorhq/parlor-go/internal/api"
)

// dataPrefix introduces every event-carrying line in the reply stream.
const dataPrefix = "data:"

// readBufferSize is the chunk size for the stream read loop.
const readBufferSize = 4096

// Decode outcomes that are not ordinary failures.
var (
	// ErrAborted reports that decoding was cancelled through the context.
	// It is a neutral outcome, not a failure.
	ErrAborted = errors.New("stream canceled")

	// ErrTruncated reports that the stream closed before a complete event
	// arrived. Unlike ErrAborted this is an error condition.
	ErrTruncated = errors.New("stream ended before reply completed")
)

// ReplyError is a server-reported failure delivered in-band as an error
// event. It aborts decoding.
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("agent reply failed: %s", e.Message)
}

// Handler receives decoded reply events. OnToken is invoked once per token
// frame with the full accumulated text so far, in strict arrival order.
type Handler interface {
	OnStart(model, mode string)
	OnToken(partial string)
	OnComplete(msg api.ChatMessage)
}

// frame is the wire shape of one decoded line. Token is a pointer so a
// token frame can be told apart from a frame with no recognizable payload.
type frame struct {
	Event     string  `json:"event"`
	Token     *string `json:"token"`
	Model     string  `json:"model"`
	Mode      string  `json:"mode"`
	MessageID string  `json:"message_id"`
	Decision  string  `json:"decision"`
	Message   string  `json:"message"`
}

// Decoder consumes raw bytes from a reply stream and emits discrete events
// through a Handler. Malformed frames are logged and skipped; they never
// abort the decode.
type Decoder struct {
	framer    Framer
	handler   Handler
	logger    *slog.Logger
	acc       strings.Builder
	completed bool
}

// NewDecoder creates a decoder that forwards events to handler.
func NewDecoder(handler Handler, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		handler: handler,
		logger:  logger.With("component", "stream"),
	}
}

// Feed consumes one chunk of raw bytes. It returns a non-nil error only for
// an in-band error event, which aborts the decode.
func (d *Decoder) Feed(chunk []byte) error {
	for _, line := range d.framer.Feed(chunk) {
		if err := d.processLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Live returns the accumulated reply text of the in-flight message.
func (d *Decoder) Live() string {
	return d.acc.String()
}

// Completed reports whether a complete event has been decoded.
func (d *Decoder) Completed() bool {
	return d.completed
}

// finish processes any trailing fragment left when the stream ends without
// a final newline.
func (d *Decoder) finish() error {
	rest := d.framer.Flush()
	if rest == "" {
		return nil
	}
	return d.processLine(rest)
}

// processLine decodes a single complete line. Blank lines are ignored;
// anything else must be the data prefix followed by a JSON payload.
func (d *Decoder) processLine(line string) error {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if !strings.HasPrefix(line, dataPrefix) {
		d.logger.Warn("skipping frame without data prefix", "line", line)
		return nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))

	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		d.logger.Warn("skipping malformed frame", "error", err, "payload", payload)
		return nil
	}

	switch f.Event {
	case "":
		if f.Token == nil {
			d.logger.Warn("skipping frame with no event or token", "payload", payload)
			return nil
		}
		d.acc.WriteString(*f.Token)
		d.handler.OnToken(d.acc.String())
	case "start":
		d.handler.OnStart(f.Model, f.Mode)
	case "complete":
		msg := api.ChatMessage{
			ID:        f.MessageID,
			Role:      api.RoleAssistant,
			Content:   d.acc.String(),
			Timestamp: time.Now(),
		}
		d.acc.Reset()
		d.completed = true
		d.handler.OnComplete(msg)
	case "escalation_offered":
		d.logger.Info("escalation offered by agent")
	case "error":
		return &ReplyError{Message: f.Message}
	default:
		d.logger.Warn("skipping unknown event", "event", f.Event)
	}
	return nil
}

// Decode runs the read loop over a reply stream body, feeding the decoder
// until the stream ends. Context cancellation yields ErrAborted; a stream
// that closes without a complete event yields ErrTruncated.
func Decode(ctx context.Context, r io.Reader, d *Decoder) error {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ErrAborted
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if ferr := d.Feed(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			if ferr := d.finish(); ferr != nil {
				return ferr
			}
			if ctx.Err() != nil {
				return ErrAborted
			}
			if !d.completed {
				return ErrTruncated
			}
			return nil
		}
		if err != nil {
			// A read error caused by our own cancellation is an abort,
			// not a failure.
			if ctx.Err() != nil {
				return ErrAborted
			}
			return fmt.Errorf("reading reply stream: %w", err)
		}
	}
}

// ABOUTME: Line framer for the chunked reply stream
// ABOUTME: Reassembles complete lines from arbitrarily split byte chunks

package stream

import "bytes"

// Framer reassembles newline-delimited lines from a byte stream whose chunk
// boundaries carry no meaning. A logical line may be split across any number
// of reads, including mid-JSON; the carry-over buffer holds the trailing
// incomplete fragment between feeds.
type Framer struct {
	buf []byte
}

// Feed appends chunk to the carry-over buffer and returns every complete
// line it now contains, in order, without the trailing newline. The
// fragment after the last newline is retained for the next feed.
func (f *Framer) Feed(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(f.buf[:i]))
		f.buf = f.buf[i+1:]
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return lines
}

// Flush returns any buffered fragment and resets the framer. Called when
// the underlying stream ends without a final newline.
func (f *Framer) Flush() string {
	rest := string(f.buf)
	f.buf = nil
	return rest
}

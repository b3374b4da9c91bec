// Package stream decodes the chunked, newline-delimited event stream the
// backend returns for a live agent reply. The Framer handles partial-frame
// reassembly so decoding is insensitive to chunk boundaries.
package stream

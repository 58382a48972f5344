package relay

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Source yields normalized deltas from one upstream response.
type Source interface {
	// Next blocks until the next delta is available. io.EOF ends the stream.
	Next() (Delta, error)
	// Close releases the upstream connection.
	Close() error
}

const (
	initialLineBuffer = 256 * 1024
	maxLineSize       = 8 * 1024 * 1024
)

var dataPrefix = []byte("data:")

// LineSource reads data lines from a streaming HTTP body and decodes each one.
// Empty, comment and undecodable lines are skipped.
type LineSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  Decoder
}

// NewLineSource wraps body. Closing the source closes body.
func NewLineSource(body io.ReadCloser, decode Decoder) *LineSource {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineSize)
	return &LineSource{body: body, scanner: scanner, decode: decode}
}

// Next returns the next decodable delta.
func (s *LineSource) Next() (Delta, error) {
	for s.scanner.Scan() {
		payload := bytes.TrimSpace(s.scanner.Bytes())
		payload = bytes.TrimSpace(bytes.TrimPrefix(payload, dataPrefix))
		if len(payload) == 0 || string(payload) == DoneSentinel {
			continue
		}
		// The scanner reuses its buffer; decoders may keep the slice.
		delta, err := s.decode(bytes.Clone(payload))
		if errors.Is(err, ErrUndecodable) {
			continue
		}
		if err != nil {
			return Delta{}, err
		}
		return delta, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Delta{}, err
	}
	return Delta{}, io.EOF
}

// Close closes the underlying body.
func (s *LineSource) Close() error {
	return s.body.Close()
}

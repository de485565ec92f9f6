package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedFrame indicates a frame length line that is not valid hex.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameReader turns a byte stream into a sequence of JSON messages.
//
// The reader is scoped to one connection attempt: its partial buffer is
// discarded along with the reader on reconnect. It is not safe for
// concurrent use.
type FrameReader struct {
	r       *bufio.Reader
	partial bytes.Buffer

	// OnFrame, when set, is called once per frame read from the wire,
	// keep-alives included. Liveness watchers hook in here; keep-alives
	// prove the connection is healthy even when no messages arrive.
	OnFrame func()
}

// NewFrameReader wraps r. When the response head was parsed from a
// *bufio.Reader, pass the same reader here so buffered bytes are not lost.
func NewFrameReader(r *bufio.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next returns the next complete JSON message.
//
// Keep-alive frames (empty payload) are skipped. Payloads that do not parse
// on their own are accumulated until the concatenation parses; Next does not
// return until a full document is available. io.EOF is returned when the
// stream closes between frames, which callers treat as a normal close.
func (fr *FrameReader) Next() (json.RawMessage, error) {
	for {
		line, err := fr.readLine()
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			// Blank separator or keep-alive between frames.
			continue
		}

		length, err := strconv.ParseUint(line, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad length line %q", ErrMalformedFrame, line)
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read frame payload: %w", err)
		}

		if fr.OnFrame != nil {
			fr.OnFrame()
		}

		trimmed := bytes.TrimSpace(payload)
		if len(trimmed) == 0 {
			// Keep-alive frame.
			continue
		}

		if json.Valid(trimmed) {
			// A standalone document abandons whatever partial was pending.
			fr.partial.Reset()
			return json.RawMessage(trimmed), nil
		}

		fr.partial.Write(payload)
		joined := bytes.TrimSpace(fr.partial.Bytes())
		if len(joined) == 0 {
			continue
		}
		if json.Valid(joined) {
			out := bytes.Clone(joined)
			fr.partial.Reset()
			return json.RawMessage(out), nil
		}
		// Document still spans further frames; keep reading.
	}
}

// readLine reads one \r\n-terminated line. A clean EOF at a line boundary
// is reported as io.EOF; EOF inside a line is io.ErrUnexpectedEOF.
func (fr *FrameReader) readLine() (string, error) {
	line, err := fr.r.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			if line == "" {
				return "", io.EOF
			}
			return "", fmt.Errorf("read length line: %w", io.ErrUnexpectedEOF)
		}
		return "", fmt.Errorf("read length line: %w", err)
	}
	return line, nil
}

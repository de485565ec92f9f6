package wire

import (
	"bufio"
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
)

// ErrMalformedResponse indicates an unparsable HTTP status line or header block.
var ErrMalformedResponse = errors.New("malformed response")

// ResponseHead is the parsed status line and header block of a stream response.
type ResponseHead struct {
	Proto      string // e.g. "HTTP/1.1"
	StatusCode int
	Status     string // full status line, e.g. "HTTP/1.1 420 Enhance Your Calm"
	Header     textproto.MIMEHeader
}

// ReadResponseHead parses the status line and headers from r, leaving r
// positioned at the first byte of the frame stream.
func ReadResponseHead(r *bufio.Reader) (*ResponseHead, error) {
	tp := textproto.NewReader(r)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("read status line: %w", err)
	}

	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return nil, fmt.Errorf("%w: status line %q", ErrMalformedResponse, line)
	}
	codeStr, _, _ := strings.Cut(strings.TrimSpace(rest), " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: status line %q", ErrMalformedResponse, line)
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: headers: %v", ErrMalformedResponse, err)
	}

	return &ResponseHead{
		Proto:      proto,
		StatusCode: code,
		Status:     line,
		Header:     header,
	}, nil
}

// ContentLength returns the Content-Length header value, or 0 when absent
// or unparsable.
func (h *ResponseHead) ContentLength() int {
	v := h.Header.Get("Content-Length")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

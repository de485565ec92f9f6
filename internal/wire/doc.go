// Package wire parses the streaming API's consumed wire format.
//
// A response is a standard HTTP/1.1 status line and header block, followed
// by an unbounded sequence of frames:
//
//	<hex-length>\r\n<payload-bytes>\r\n
//
// Frames with an empty payload are keep-alives and are consumed silently.
// A JSON document may span multiple frames; partial payloads are buffered
// until the concatenation parses.
package wire

// Package parser decodes frames of the redis serialization protocol.
//
// Decoding happens in two phases. Check walks the buffer without materialising anything and reports
// whether a complete frame sits at its head. Decode runs Check first and only then builds the frame.
// A Checker kept across reads resumes where it stopped, so a partially received frame is never
// walked twice.
package parser

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/utils"
	"github.com/hdt3213/pdis/redis/protocol"
)

const (
	// MaxBulkLen is the largest bulk string accepted
	MaxBulkLen = 512 * 1024 * 1024
	// MaxArrayLen is the largest element count accepted for an array
	MaxArrayLen = 1024 * 1024
	// MaxDepth is the deepest nesting of arrays accepted
	MaxDepth = 32
	// MaxLineLen bounds simple strings, errors, integers and length headers
	MaxLineLen = 64 * 1024
)

// ErrIncomplete means the buffer holds a valid but unfinished frame. It is not a failure.
var ErrIncomplete = errors.New("incomplete frame")

// ProtocolError means the buffer can never become a valid frame
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

func protocolError(msg string) error {
	return &ProtocolError{Msg: msg}
}

var nilLength = []byte("-1")

// Checker finds the end of the frame at the head of a buffer which may arrive in several reads.
// After ErrIncomplete it keeps the position of the first element not checked yet, so the next
// call with the same buffer plus new bytes resumes there instead of starting over.
// The zero value is ready to use.
type Checker struct {
	pos int
	// elements still expected by every open array, innermost last
	pending []int64
}

// Reset forgets any partially checked frame
func (c *Checker) Reset() {
	c.pos = 0
	c.pending = c.pending[:0]
}

// Check reports the length of the complete frame at the head of buf.
// It returns ErrIncomplete if more bytes are needed and a *ProtocolError if buf is malformed.
// Unless Reset was called, buf must start with the bytes given to the previous call.
func (c *Checker) Check(buf []byte) (int, error) {
	for {
		next, count, err := checkElement(buf, c.pos)
		if err == ErrIncomplete {
			return 0, err
		}
		if err != nil {
			c.Reset()
			return 0, err
		}
		c.pos = next
		if count > 0 {
			if len(c.pending) >= MaxDepth {
				c.Reset()
				return 0, protocolError("too many nested arrays")
			}
			c.pending = append(c.pending, count)
			continue
		}
		// an element is complete, it may complete its enclosing arrays as well
		finished := true
		for finished && len(c.pending) > 0 {
			top := len(c.pending) - 1
			c.pending[top]--
			if c.pending[top] > 0 {
				finished = false
			} else {
				c.pending = c.pending[:top]
			}
		}
		if finished {
			n := c.pos
			c.Reset()
			return n, nil
		}
	}
}

// Decode checks buf like Check and materialises the frame once it is complete
func (c *Checker) Decode(buf []byte) (redis.Reply, int, error) {
	n, err := c.Check(buf)
	if err != nil {
		return nil, 0, err
	}
	frame, next, err := decode(buf[:n], 0)
	if err != nil {
		return nil, 0, err
	}
	return frame, next, nil
}

// Check reports the length of the complete frame at the head of buf.
// It returns ErrIncomplete if more bytes are needed and a *ProtocolError if buf is malformed.
func Check(buf []byte) (int, error) {
	var c Checker
	return c.Check(buf)
}

// checkElement checks the single element starting at pos.
// For a non-empty array it only checks the header and returns the element count, otherwise count is 0.
func checkElement(buf []byte, pos int) (next int, count int64, err error) {
	if pos >= len(buf) {
		return 0, 0, ErrIncomplete
	}
	switch buf[pos] {
	case '+', '-':
		_, next, err = readLine(buf, pos+1)
		return next, 0, err
	case ':':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return 0, 0, err
		}
		if _, ok := utils.ParseInt(line); !ok {
			return 0, 0, protocolError("invalid integer " + strconv.Quote(string(line)))
		}
		return next, 0, nil
	case '$':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return 0, 0, err
		}
		if bytes.Equal(line, nilLength) {
			return next, 0, nil
		}
		size, ok := parseLength(line)
		if !ok || size > MaxBulkLen {
			return 0, 0, protocolError("invalid bulk length " + strconv.Quote(string(line)))
		}
		end := next + int(size) + 2
		if end > len(buf) {
			return 0, 0, ErrIncomplete
		}
		if buf[end-2] != '\r' || buf[end-1] != '\n' {
			return 0, 0, protocolError("bulk string is not terminated by CRLF")
		}
		return end, 0, nil
	case '*':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return 0, 0, err
		}
		if bytes.Equal(line, nilLength) {
			return next, 0, nil
		}
		count, ok := parseLength(line)
		if !ok || count > MaxArrayLen {
			return 0, 0, protocolError("invalid multibulk length " + strconv.Quote(string(line)))
		}
		return next, count, nil
	default:
		return 0, 0, protocolError("unexpected byte " + strconv.QuoteRune(rune(buf[pos])))
	}
}

// parseLength accepts non-negative decimal lengths only, "-0" included in the rejected forms
func parseLength(line []byte) (int64, bool) {
	if len(line) == 0 || line[0] == '-' {
		return 0, false
	}
	return utils.ParseInt(line)
}

// readLine returns the bytes between pos and the next CRLF and the offset right after the CRLF
func readLine(buf []byte, pos int) ([]byte, int, error) {
	i := bytes.Index(buf[pos:], []byte{'\r', '\n'})
	if i < 0 {
		if len(buf)-pos > MaxLineLen {
			return nil, 0, protocolError("line too long")
		}
		return nil, 0, ErrIncomplete
	}
	if i > MaxLineLen {
		return nil, 0, protocolError("line too long")
	}
	return buf[pos : pos+i], pos + i + 2, nil
}

// Decode materialises the frame at the head of buf and returns it with its encoded length.
// The returned frame owns its memory, buf may be reused afterwards.
func Decode(buf []byte) (redis.Reply, int, error) {
	var c Checker
	return c.Decode(buf)
}

// decode assumes buf already passed Check, so recursion is bounded by MaxDepth
func decode(buf []byte, pos int) (redis.Reply, int, error) {
	switch buf[pos] {
	case '+':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return nil, 0, err
		}
		return protocol.MakeStatusReply(string(line)), next, nil
	case '-':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return nil, 0, err
		}
		return protocol.MakeErrReply(string(line)), next, nil
	case ':':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return nil, 0, err
		}
		v, _ := utils.ParseInt(line)
		return protocol.MakeIntReply(v), next, nil
	case '$':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return nil, 0, err
		}
		if bytes.Equal(line, nilLength) {
			return protocol.MakeNullBulkReply(), next, nil
		}
		size, _ := utils.ParseInt(line)
		body := make([]byte, size)
		copy(body, buf[next:next+int(size)])
		return protocol.MakeBulkReply(body), next + int(size) + 2, nil
	case '*':
		line, next, err := readLine(buf, pos+1)
		if err != nil {
			return nil, 0, err
		}
		if bytes.Equal(line, nilLength) {
			return protocol.MakeNullBulkReply(), next, nil
		}
		count, _ := utils.ParseInt(line)
		items := make([]redis.Reply, 0, count)
		for i := int64(0); i < count; i++ {
			var item redis.Reply
			item, next, err = decode(buf, next)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, item)
		}
		return protocol.MakeArrayReply(items...), next, nil
	}
	return nil, 0, protocolError("unexpected byte " + strconv.QuoteRune(rune(buf[pos])))
}

// ParseBytes reads every frame in data. A trailing partial frame is reported as ErrIncomplete.
func ParseBytes(data []byte) ([]redis.Reply, error) {
	var result []redis.Reply
	for len(data) > 0 {
		frame, n, err := Decode(data)
		if err != nil {
			return result, err
		}
		result = append(result, frame)
		data = data[n:]
	}
	return result, nil
}

// ParseOne reads the first frame in data
func ParseOne(data []byte) (redis.Reply, error) {
	frame, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// IsProtocolError reports whether err is fatal to the stream it came from
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

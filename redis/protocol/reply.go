package protocol

import (
	"strconv"

	"github.com/hdt3213/pdis/interface/redis"
)

var (
	// CRLF is the line separator of redis serialization protocol
	CRLF = "\r\n"
)

// appendHeader writes a type byte followed by a decimal length or value and CRLF
func appendHeader(buf []byte, kind byte, n int64) []byte {
	buf = append(buf, kind)
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, CRLF...)
}

func appendBulk(buf []byte, arg []byte) []byte {
	if arg == nil {
		return append(buf, nullBulkBytes...)
	}
	buf = appendHeader(buf, '$', int64(len(arg)))
	buf = append(buf, arg...)
	return append(buf, CRLF...)
}

/* ---- Bulk Reply ---- */

// BulkReply stores a binary-safe string. An empty Arg is still a bulk string, use NullBulkReply for nil.
type BulkReply struct {
	Arg []byte
}

// MakeBulkReply creates BulkReply
func MakeBulkReply(arg []byte) *BulkReply {
	return &BulkReply{Arg: arg}
}

// ToBytes marshal redis.Reply
func (r *BulkReply) ToBytes() []byte {
	buf := make([]byte, 0, len(r.Arg)+16)
	// a nil Arg is an empty value here, not a nil bulk
	buf = appendHeader(buf, '$', int64(len(r.Arg)))
	buf = append(buf, r.Arg...)
	return append(buf, CRLF...)
}

/* ---- Multi Bulk Reply ---- */

// MultiBulkReply stores a list of string, nil elements are encoded as nil bulk
type MultiBulkReply struct {
	Args [][]byte
}

// MakeMultiBulkReply creates MultiBulkReply
func MakeMultiBulkReply(args [][]byte) *MultiBulkReply {
	return &MultiBulkReply{Args: args}
}

// ToBytes marshal redis.Reply
func (r *MultiBulkReply) ToBytes() []byte {
	size := 16
	for _, arg := range r.Args {
		size += len(arg) + 16
	}
	buf := appendHeader(make([]byte, 0, size), '*', int64(len(r.Args)))
	for _, arg := range r.Args {
		buf = appendBulk(buf, arg)
	}
	return buf
}

/* ---- Array Reply ---- */

// ArrayReply is an array of arbitrary frames, including nested arrays
type ArrayReply struct {
	Items []redis.Reply
}

// MakeArrayReply creates ArrayReply
func MakeArrayReply(items ...redis.Reply) *ArrayReply {
	return &ArrayReply{Items: items}
}

// ToBytes marshal redis.Reply
func (r *ArrayReply) ToBytes() []byte {
	buf := appendHeader(nil, '*', int64(len(r.Items)))
	for _, item := range r.Items {
		if item == nil {
			buf = append(buf, nullBulkBytes...)
			continue
		}
		buf = append(buf, item.ToBytes()...)
	}
	return buf
}

/* ---- Status Reply ---- */

// StatusReply stores a simple status string
type StatusReply struct {
	Status string
}

// MakeStatusReply creates StatusReply
func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{Status: status}
}

// ToBytes marshal redis.Reply
func (r *StatusReply) ToBytes() []byte {
	buf := make([]byte, 0, len(r.Status)+3)
	buf = append(buf, '+')
	buf = append(buf, r.Status...)
	return append(buf, CRLF...)
}

/* ---- Int Reply ---- */

// IntReply stores an int64 number
type IntReply struct {
	Code int64
}

// MakeIntReply creates int reply
func MakeIntReply(code int64) *IntReply {
	return &IntReply{Code: code}
}

// ToBytes marshal redis.Reply
func (r *IntReply) ToBytes() []byte {
	return appendHeader(make([]byte, 0, 24), ':', r.Code)
}

/* ---- Error Reply ---- */

// ErrorReply is an error and redis.Reply
type ErrorReply = redis.ErrorReply

// StandardErrReply carries an arbitrary error line, usually prefixed with ERR
type StandardErrReply struct {
	Status string
}

// MakeErrReply creates StandardErrReply
func MakeErrReply(status string) *StandardErrReply {
	return &StandardErrReply{Status: status}
}

// IsErrorReply returns true if the given reply is error, every error frame implements ErrorReply
func IsErrorReply(reply redis.Reply) bool {
	_, ok := reply.(ErrorReply)
	return ok
}

// ToBytes marshal redis.Reply
func (r *StandardErrReply) ToBytes() []byte {
	buf := make([]byte, 0, len(r.Status)+3)
	buf = append(buf, '-')
	buf = append(buf, r.Status...)
	return append(buf, CRLF...)
}

func (r *StandardErrReply) Error() string {
	return r.Status
}

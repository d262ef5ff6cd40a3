package database

import (
	"errors"
	"strconv"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/utils"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotInteger is returned when incrementing content which is not a base-10 int64
	ErrNotInteger = errors.New("value is not an integer")
	// ErrNotFloat is returned when incrementing content which is not a decimal number
	ErrNotFloat = errors.New("value is not a valid float")
	// ErrOverflow is returned when an increment leaves the int64 range
	ErrOverflow = errors.New("increment or decrement would overflow")
)

// Value is the content of a key: owned bytes, or absent
type Value struct {
	data    []byte
	present bool
}

// Absent is the Value of a key which does not exist
var Absent = Value{}

// MakeValue wraps b, which must not be modified afterwards
func MakeValue(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{data: b, present: true}
}

// IsAbsent tells whether the key does not exist
func (v Value) IsAbsent() bool {
	return !v.present
}

// Bytes returns the content, nil when absent
func (v Value) Bytes() []byte {
	return v.data
}

// ToReply converts to a bulk reply, or nil when absent
func (v Value) ToReply() redis.Reply {
	if !v.present {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeBulkReply(v.data)
}

// Int64 reads the content as a base-10 integer, absent reads as 0
func (v Value) Int64() (int64, error) {
	if !v.present {
		return 0, nil
	}
	n, ok := utils.ParseInt(v.data)
	if !ok {
		return 0, ErrNotInteger
	}
	return n, nil
}

// IncrBy returns the value increased by delta and the resulting number.
// The receiver is left untouched when it is not an integer or the sum overflows.
func (v Value) IncrBy(delta int64) (Value, int64, error) {
	n, err := v.Int64()
	if err != nil {
		return v, 0, err
	}
	if (delta > 0 && n > maxInt64-delta) || (delta < 0 && n < minInt64-delta) {
		return v, 0, ErrOverflow
	}
	n += delta
	return MakeValue(strconv.AppendInt(nil, n, 10)), n, nil
}

// IncrByFloat returns the value increased by delta using decimal arithmetic
func (v Value) IncrByFloat(delta decimal.Decimal) (Value, decimal.Decimal, error) {
	current := decimal.Zero
	if v.present {
		var err error
		current, err = decimal.NewFromString(string(v.data))
		if err != nil {
			return v, decimal.Zero, ErrNotFloat
		}
	}
	sum := current.Add(delta)
	return MakeValue([]byte(sum.String())), sum, nil
}

const (
	maxInt64 = 1<<63 - 1
	minInt64 = -1 << 63
)

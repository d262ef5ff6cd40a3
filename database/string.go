package database

import (
	"errors"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/shopspring/decimal"
)

var (
	errInvalidExpire = protocol.MakeErrReply("ERR invalid expire time in set")
	errNotFloat      = protocol.MakeErrReply("ERR value is not a valid float")
	errOverflow      = protocol.MakeErrReply("ERR increment or decrement would overflow")
)

func parseGet(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	return &Get{Key: key}, nil
}

// execGet returns string value bound to the given key
func execGet(db *DB, cmd *Get) (redis.Reply, error) {
	v, err := db.GetValue(cmd.Key)
	if err != nil {
		return nil, err
	}
	return v.ToReply(), nil
}

func parseSet(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	value, err := c.Next()
	if err != nil {
		return nil, err
	}
	cmd := &Set{Key: key, Value: value}
	ttlGiven := false
	for c.Len() > 0 {
		opt, _ := c.NextKeyword()
		switch opt {
		case "nx":
			if cmd.Cond == setIfExists {
				return nil, protocol.MakeSyntaxErrReply()
			}
			cmd.Cond = setIfAbsent
		case "xx":
			if cmd.Cond == setIfAbsent {
				return nil, protocol.MakeSyntaxErrReply()
			}
			cmd.Cond = setIfExists
		case "ex", "px":
			if ttlGiven {
				return nil, protocol.MakeSyntaxErrReply()
			}
			ttl, err := c.NextInt64()
			if err != nil {
				return nil, protocol.MakeSyntaxErrReply()
			}
			if ttl <= 0 {
				return nil, errInvalidExpire
			}
			if opt == "ex" {
				if ttl > maxInt64/1000 {
					return nil, errInvalidExpire
				}
				ttl *= 1000
			}
			cmd.TTL = ttl
			ttlGiven = true
		default:
			return nil, protocol.MakeSyntaxErrReply()
		}
	}
	return cmd, nil
}

// execSet sets string value and time to live to the given key
func execSet(db *DB, cmd *Set) (redis.Reply, error) {
	value := MakeValue(cmd.Value)
	var written bool
	var err error
	switch cmd.Cond {
	case setIfAbsent:
		written, err = db.PutIfAbsent(cmd.Key, value)
	case setIfExists:
		written, err = db.PutIfExists(cmd.Key, value)
	default:
		err = db.PutValue(cmd.Key, value)
		written = true
	}
	if err != nil {
		return nil, err
	}
	if !written {
		return nil, nil
	}
	return protocol.MakeOkReply(), nil
}

func parseStrLen(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	return &StrLen{Key: key}, nil
}

func execStrLen(db *DB, cmd *StrLen) (redis.Reply, error) {
	v, err := db.GetValue(cmd.Key)
	if err != nil {
		return nil, err
	}
	return protocol.MakeIntReply(int64(len(v.Bytes()))), nil
}

func parseIncr(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	return &IncrBy{Verb: "incr", Key: key, Delta: 1}, nil
}

func parseDecr(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	return &IncrBy{Verb: "decr", Key: key, Delta: -1}, nil
}

func parseIncrBy(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	delta, err := c.NextInt64()
	if err != nil {
		return nil, err
	}
	return &IncrBy{Verb: "incrby", Key: key, Delta: delta}, nil
}

func parseDecrBy(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	delta, err := c.NextInt64()
	if err != nil {
		return nil, err
	}
	if delta == minInt64 {
		return nil, errOverflow
	}
	return &IncrBy{Verb: "decrby", Key: key, Delta: -delta}, nil
}

// execIncrBy adds Delta to the integer stored at Key, a missing key counts as 0
func execIncrBy(db *DB, cmd *IncrBy) (redis.Reply, error) {
	v, err := db.GetValue(cmd.Key)
	if err != nil {
		return nil, err
	}
	next, n, err := v.IncrBy(cmd.Delta)
	switch {
	case errors.Is(err, ErrNotInteger):
		return nil, &protocol.NotIntegerErrReply{}
	case errors.Is(err, ErrOverflow):
		return nil, errOverflow
	case err != nil:
		return nil, err
	}
	if err := db.PutValue(cmd.Key, next); err != nil {
		return nil, err
	}
	return protocol.MakeIntReply(n), nil
}

func parseIncrByFloat(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	raw, err := c.NextString()
	if err != nil {
		return nil, err
	}
	delta, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errNotFloat
	}
	return &IncrByFloat{Key: key, Delta: delta}, nil
}

// execIncrByFloat increments the number stored at Key using decimal arithmetic
func execIncrByFloat(db *DB, cmd *IncrByFloat) (redis.Reply, error) {
	v, err := db.GetValue(cmd.Key)
	if err != nil {
		return nil, err
	}
	next, _, err := v.IncrByFloat(cmd.Delta)
	if errors.Is(err, ErrNotFloat) {
		return nil, errNotFloat
	}
	if err != nil {
		return nil, err
	}
	if err := db.PutValue(cmd.Key, next); err != nil {
		return nil, err
	}
	return next.ToReply(), nil
}

func parseMGet(c *Cursor) (Command, error) {
	keys, err := c.Rest()
	if err != nil {
		return nil, err
	}
	return &MGet{Keys: keys}, nil
}

// execMGet returns one element per key, in request order, nil for missing keys
func execMGet(db *DB, cmd *MGet) (redis.Reply, error) {
	result := make([][]byte, len(cmd.Keys))
	for i, key := range cmd.Keys {
		v, err := db.GetValue(key)
		if err != nil {
			return nil, err
		}
		result[i] = v.Bytes()
	}
	return protocol.MakeMultiBulkReply(result), nil
}

func parseMSet(c *Cursor) (Command, error) {
	if c.Len()%2 != 0 {
		return nil, ErrEOF
	}
	cmd := &MSet{}
	for c.Len() > 0 {
		key, _ := c.Next()
		value, _ := c.Next()
		cmd.Keys = append(cmd.Keys, key)
		cmd.Values = append(cmd.Values, value)
	}
	return cmd, nil
}

// execMSet sets multi key-value in database
func execMSet(db *DB, cmd *MSet) (redis.Reply, error) {
	for i, key := range cmd.Keys {
		if err := db.PutValue(key, MakeValue(cmd.Values[i])); err != nil {
			return nil, err
		}
	}
	return protocol.MakeOkReply(), nil
}

func init() {
	registerCommand("Get", parseGet, 2, flagReadOnly)
	registerCommand("Set", parseSet, -3, flagWrite)
	registerCommand("StrLen", parseStrLen, 2, flagReadOnly)
	registerCommand("Incr", parseIncr, 2, flagWrite)
	registerCommand("IncrBy", parseIncrBy, 3, flagWrite)
	registerCommand("IncrByFloat", parseIncrByFloat, 3, flagWrite)
	registerCommand("Decr", parseDecr, 2, flagWrite)
	registerCommand("DecrBy", parseDecrBy, 3, flagWrite)
	registerCommand("MGet", parseMGet, -2, flagReadOnly)
	registerCommand("MSet", parseMSet, -3, flagWrite)
}

package database

import (
	"strconv"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/redis/protocol"
)

const defaultScanCount = 10

var (
	errInvalidCursor = protocol.MakeErrReply("ERR invalid cursor")
	matchAll         = []byte("*")
)

func parseDel(c *Cursor) (Command, error) {
	keys, err := c.Rest()
	if err != nil {
		return nil, err
	}
	return &Del{Keys: keys}, nil
}

// execDel removes keys from db and counts the ones which existed
func execDel(db *DB, cmd *Del) (redis.Reply, error) {
	deleted, err := db.Removes(cmd.Keys...)
	if err != nil {
		return nil, err
	}
	return protocol.MakeIntReply(int64(deleted)), nil
}

func parseExists(c *Cursor) (Command, error) {
	keys, err := c.Rest()
	if err != nil {
		return nil, err
	}
	return &Exists{Keys: keys}, nil
}

// execExists checks if given key is existed in db, a key given twice counts twice
func execExists(db *DB, cmd *Exists) (redis.Reply, error) {
	result := int64(0)
	for _, key := range cmd.Keys {
		exists, err := db.Exists(key)
		if err != nil {
			return nil, err
		}
		if exists {
			result++
		}
	}
	return protocol.MakeIntReply(result), nil
}

func parseKeys(c *Cursor) (Command, error) {
	pattern, err := c.Next()
	if err != nil {
		return nil, err
	}
	return &Keys{Pattern: pattern}, nil
}

// execKeys returns all keys matching the given pattern
func execKeys(db *DB, cmd *Keys) (redis.Reply, error) {
	keys, err := db.Keys(cmd.Pattern)
	if err != nil {
		return nil, err
	}
	return protocol.MakeMultiBulkReply(keys), nil
}

func parseScan(c *Cursor) (Command, error) {
	cursor, err := c.NextInt64()
	if err == ErrNotIntegerArg || (err == nil && cursor < 0) {
		return nil, errInvalidCursor
	}
	if err != nil {
		return nil, err
	}
	cmd := &Scan{Cursor: cursor, Pattern: matchAll, Count: defaultScanCount}
	for c.Len() > 0 {
		opt, _ := c.NextKeyword()
		switch opt {
		case "match":
			pattern, err := c.Next()
			if err != nil {
				return nil, protocol.MakeSyntaxErrReply()
			}
			cmd.Pattern = pattern
		case "count":
			count, err := c.NextInt64()
			if err != nil || count < 1 {
				return nil, protocol.MakeSyntaxErrReply()
			}
			cmd.Count = count
		default:
			return nil, protocol.MakeSyntaxErrReply()
		}
	}
	return cmd, nil
}

// execScan replies [next cursor, [keys...]]
func execScan(db *DB, cmd *Scan) (redis.Reply, error) {
	next, keys, err := db.Scan(cmd.Cursor, cmd.Pattern, cmd.Count)
	if err != nil {
		return nil, err
	}
	return protocol.MakeArrayReply(
		protocol.MakeBulkReply([]byte(strconv.FormatInt(next, 10))),
		protocol.MakeMultiBulkReply(keys),
	), nil
}

func parseTTL(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	return &TTL{Key: key}, nil
}

func parsePTTL(c *Cursor) (Command, error) {
	key, err := c.Next()
	if err != nil {
		return nil, err
	}
	return &TTL{Key: key, Millis: true}, nil
}

// execTTL always reports -1, expiry is not tracked
func execTTL(cmd *TTL) (redis.Reply, error) {
	return protocol.MakeIntReply(-1), nil
}

func parseNoArgs(cmd Command) parseFunc {
	return func(c *Cursor) (Command, error) {
		return cmd, nil
	}
}

// parseFlushDB accepts the ASYNC and SYNC modifiers, both flush synchronously
func parseFlushDB(c *Cursor) (Command, error) {
	if c.Len() > 0 {
		mode, _ := c.NextKeyword()
		if mode != "async" && mode != "sync" {
			return nil, protocol.MakeSyntaxErrReply()
		}
	}
	return &FlushDB{}, nil
}

// execFlushDB removes all data in current db
func execFlushDB(db *DB) (redis.Reply, error) {
	if err := db.Flush(); err != nil {
		return nil, err
	}
	return protocol.MakeOkReply(), nil
}

func execDBSize(db *DB) (redis.Reply, error) {
	n, err := db.Len()
	if err != nil {
		return nil, err
	}
	return protocol.MakeIntReply(n), nil
}

func init() {
	registerCommand("Del", parseDel, -2, flagWrite)
	registerCommand("Exists", parseExists, -2, flagReadOnly)
	registerCommand("Keys", parseKeys, 2, flagReadOnly)
	registerCommand("Scan", parseScan, -2, flagReadOnly)
	registerCommand("TTL", parseTTL, 2, flagReadOnly)
	registerCommand("PTTL", parsePTTL, 2, flagReadOnly)
	registerCommand("FlushDB", parseFlushDB, -1, flagWrite)
	registerCommand("DBSize", parseNoArgs(&DBSize{}), 1, flagReadOnly)
}

package database

import (
	"fmt"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/redis/protocol"
)

// apply executes cmd against db. A nil reply with a nil error stands for the nil frame.
func apply(db *DB, cmd Command) (redis.Reply, error) {
	switch c := cmd.(type) {
	case *Get:
		return execGet(db, c)
	case *Set:
		return execSet(db, c)
	case *StrLen:
		return execStrLen(db, c)
	case *IncrBy:
		return execIncrBy(db, c)
	case *IncrByFloat:
		return execIncrByFloat(db, c)
	case *MGet:
		return execMGet(db, c)
	case *MSet:
		return execMSet(db, c)
	case *Del:
		return execDel(db, c)
	case *Exists:
		return execExists(db, c)
	case *Keys:
		return execKeys(db, c)
	case *Scan:
		return execScan(db, c)
	case *TTL:
		return execTTL(c)
	case *Select:
		return execSelect(c)
	case *FlushDB:
		return execFlushDB(db)
	case *DBSize:
		return execDBSize(db)
	case *Info:
		return execInfo(db, c)
	case *Ping:
		return execPing(c)
	case *Save:
		return execSave(db)
	case *CommandDesc:
		return execCommandDesc(c)
	case *Unknown:
		return nil, protocol.MakeUnknownCommandErrReply(c.Cmd)
	}
	return nil, fmt.Errorf("no executor for %T", cmd)
}

package database

import "github.com/shopspring/decimal"

// Command is a request that passed parsing. Every argument is already checked for arity and type,
// the Worker applies it exactly once.
// The set of commands is closed: only types in this package implement it.
type Command interface {
	// Name is the lower-case command name, used in logs and metrics
	Name() string
	isCommand()
}

type setCondition uint8

const (
	setAlways setCondition = iota
	setIfAbsent
	setIfExists
)

// Get is GET key
type Get struct {
	Key []byte
}

// Set is SET key value [NX|XX] [EX seconds|PX milliseconds]
type Set struct {
	Key   []byte
	Value []byte
	Cond  setCondition
	// TTL in milliseconds, 0 when not given. Accepted but not enforced.
	TTL int64
}

// StrLen is STRLEN key
type StrLen struct {
	Key []byte
}

// IncrBy covers INCR, INCRBY, DECR and DECRBY
type IncrBy struct {
	Verb  string
	Key   []byte
	Delta int64
}

// IncrByFloat is INCRBYFLOAT key increment
type IncrByFloat struct {
	Key   []byte
	Delta decimal.Decimal
}

// MGet is MGET key [key ...]
type MGet struct {
	Keys [][]byte
}

// MSet is MSET key value [key value ...]
type MSet struct {
	Keys   [][]byte
	Values [][]byte
}

// Del is DEL key [key ...]
type Del struct {
	Keys [][]byte
}

// Exists is EXISTS key [key ...]
type Exists struct {
	Keys [][]byte
}

// Keys is KEYS pattern
type Keys struct {
	Pattern []byte
}

// Scan is SCAN cursor [MATCH pattern] [COUNT count]
type Scan struct {
	Cursor  int64
	Pattern []byte
	Count   int64
}

// TTL covers TTL and PTTL
type TTL struct {
	Key    []byte
	Millis bool
}

// Select is SELECT index
type Select struct {
	Index int64
}

// FlushDB is FLUSHDB
type FlushDB struct{}

// DBSize is DBSIZE
type DBSize struct{}

// Info is INFO [section ...]
type Info struct {
	Sections []string
}

// Ping is PING [message]
type Ping struct {
	Message []byte
}

// Save is SAVE
type Save struct{}

// CommandDesc is COMMAND [COUNT|INFO name ...|DOCS name ...]
type CommandDesc struct {
	Sub   string
	Names []string
}

// Unknown is any name outside the command table. Applying it yields an error reply.
type Unknown struct {
	Cmd string
}

func (c *Get) Name() string         { return "get" }
func (c *Set) Name() string         { return "set" }
func (c *StrLen) Name() string      { return "strlen" }
func (c *IncrBy) Name() string      { return c.Verb }
func (c *IncrByFloat) Name() string { return "incrbyfloat" }
func (c *MGet) Name() string        { return "mget" }
func (c *MSet) Name() string        { return "mset" }
func (c *Del) Name() string         { return "del" }
func (c *Exists) Name() string      { return "exists" }
func (c *Keys) Name() string        { return "keys" }
func (c *Scan) Name() string        { return "scan" }
func (c *Select) Name() string      { return "select" }
func (c *FlushDB) Name() string     { return "flushdb" }
func (c *DBSize) Name() string      { return "dbsize" }
func (c *Info) Name() string        { return "info" }
func (c *Ping) Name() string        { return "ping" }
func (c *Save) Name() string        { return "save" }
func (c *CommandDesc) Name() string { return "command" }
func (c *Unknown) Name() string     { return "unknown" }

func (c *TTL) Name() string {
	if c.Millis {
		return "pttl"
	}
	return "ttl"
}

func (*Get) isCommand()         {}
func (*Set) isCommand()         {}
func (*StrLen) isCommand()      {}
func (*IncrBy) isCommand()      {}
func (*IncrByFloat) isCommand() {}
func (*MGet) isCommand()        {}
func (*MSet) isCommand()        {}
func (*Del) isCommand()         {}
func (*Exists) isCommand()      {}
func (*Keys) isCommand()        {}
func (*Scan) isCommand()        {}
func (*TTL) isCommand()         {}
func (*Select) isCommand()      {}
func (*FlushDB) isCommand()     {}
func (*DBSize) isCommand()      {}
func (*Info) isCommand()        {}
func (*Ping) isCommand()        {}
func (*Save) isCommand()        {}
func (*CommandDesc) isCommand() {}
func (*Unknown) isCommand()     {}

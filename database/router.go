package database

import (
	"errors"
	"sort"
	"strings"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/redis/protocol"
)

var cmdTable = make(map[string]*command)

// parseFunc builds a Command from the arguments following the command name
type parseFunc func(c *Cursor) (Command, error)

type command struct {
	name  string
	parse parseFunc
	// arity means allowed number of cmdArgs, arity < 0 means len(args) >= -arity.
	// for example: the arity of `get` is 2, `mget` is -2
	arity int
	flags int
}

const flagWrite = 0

const (
	flagReadOnly = 1 << iota
	flagAdmin
)

// registerCommand registers a command name with its parser
func registerCommand(name string, parse parseFunc, arity int, flags int) *command {
	name = strings.ToLower(name)
	cmd := &command{
		name:  name,
		parse: parse,
		arity: arity,
		flags: flags,
	}
	cmdTable[name] = cmd
	return cmd
}

func validateArity(arity int, cmdArgs [][]byte) bool {
	argNum := len(cmdArgs)
	if arity >= 0 {
		return argNum == arity
	}
	return argNum >= -arity
}

var errNotCmdLine = protocol.MakeErrReply("ERR Protocol error: expected array of bulk strings")

// ToCmdLine extracts the arguments of a request frame.
// Only arrays of bulk or simple strings are requests.
func ToCmdLine(frame redis.Reply) ([][]byte, error) {
	switch f := frame.(type) {
	case *protocol.MultiBulkReply:
		for _, arg := range f.Args {
			if arg == nil {
				return nil, errNotCmdLine
			}
		}
		return f.Args, nil
	case *protocol.ArrayReply:
		args := make([][]byte, len(f.Items))
		for i, item := range f.Items {
			switch v := item.(type) {
			case *protocol.BulkReply:
				args[i] = v.Arg
			case *protocol.StatusReply:
				args[i] = []byte(v.Status)
			default:
				return nil, errNotCmdLine
			}
		}
		return args, nil
	}
	return nil, errNotCmdLine
}

// ParseCommand turns a request frame into a Command.
// The returned error, if any, is a protocol.ErrorReply meant to be sent back to the client.
func ParseCommand(frame redis.Reply) (Command, error) {
	cmdLine, err := ToCmdLine(frame)
	if err != nil {
		return nil, err
	}
	return ParseCmdLine(cmdLine)
}

// ParseCmdLine is ParseCommand for already extracted arguments
func ParseCmdLine(cmdLine [][]byte) (Command, error) {
	if len(cmdLine) == 0 {
		return nil, protocol.MakeErrReply("ERR empty command")
	}
	name := strings.ToLower(string(cmdLine[0]))
	cmd, ok := cmdTable[name]
	if !ok {
		return &Unknown{Cmd: string(cmdLine[0])}, nil
	}
	if !validateArity(cmd.arity, cmdLine) {
		return nil, protocol.MakeArgNumErrReply(name)
	}
	cursor := newCursor(cmdLine[1:])
	parsed, err := cmd.parse(cursor)
	if err == nil {
		err = cursor.Finish()
	}
	if err != nil {
		return nil, toParseError(name, err)
	}
	return parsed, nil
}

func toParseError(name string, err error) error {
	switch {
	case errors.Is(err, ErrEOF), errors.Is(err, ErrTrailing):
		return protocol.MakeArgNumErrReply(name)
	case errors.Is(err, ErrNotIntegerArg):
		return &protocol.NotIntegerErrReply{}
	}
	var errReply redis.ErrorReply
	if errors.As(err, &errReply) {
		return errReply
	}
	return protocol.MakeErrReply("ERR " + err.Error())
}

// isReadOnlyCommand tells whether the command never modifies the keyspace
func isReadOnlyCommand(name string) bool {
	cmd := cmdTable[strings.ToLower(name)]
	if cmd == nil {
		return false
	}
	return cmd.flags&flagReadOnly > 0
}

func (cmd *command) flagNames() [][]byte {
	var flags [][]byte
	if isReadOnlyCommand(cmd.name) {
		flags = append(flags, []byte("readonly"))
	} else {
		flags = append(flags, []byte("write"))
	}
	if cmd.flags&flagAdmin > 0 {
		flags = append(flags, []byte("admin"))
	}
	return flags
}

func (cmd *command) toDescReply() redis.Reply {
	return protocol.MakeArrayReply(
		protocol.MakeBulkReply([]byte(cmd.name)),
		protocol.MakeIntReply(int64(cmd.arity)),
		protocol.MakeMultiBulkReply(cmd.flagNames()),
	)
}

func commandNames() []string {
	names := make([]string, 0, len(cmdTable))
	for name := range cmdTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package database

import (
	"errors"
	"strings"

	"github.com/hdt3213/pdis/lib/utils"
)

var (
	// ErrEOF means the command line ran out of arguments
	ErrEOF = errors.New("protocol error: unexpected end of arguments")
	// ErrTrailing means arguments were left after the command was fully parsed
	ErrTrailing = errors.New("protocol error: trailing arguments")
	// ErrNotIntegerArg means an argument is not a base-10 integer
	ErrNotIntegerArg = errors.New("argument is not an integer")
)

// Cursor hands out the arguments of one request front to back.
// It is consumed while a command is parsed and is not reused afterwards.
type Cursor struct {
	args [][]byte
	pos  int
}

func newCursor(args [][]byte) *Cursor {
	return &Cursor{args: args}
}

// Len returns the number of arguments not consumed yet
func (c *Cursor) Len() int {
	return len(c.args) - c.pos
}

// Next consumes one raw argument
func (c *Cursor) Next() ([]byte, error) {
	if c.pos >= len(c.args) {
		return nil, ErrEOF
	}
	arg := c.args[c.pos]
	c.pos++
	return arg, nil
}

// NextString consumes one argument as a string
func (c *Cursor) NextString() (string, error) {
	arg, err := c.Next()
	if err != nil {
		return "", err
	}
	return string(arg), nil
}

// NextKeyword consumes one argument and lower-cases it, for option names
func (c *Cursor) NextKeyword() (string, error) {
	s, err := c.NextString()
	if err != nil {
		return "", err
	}
	return strings.ToLower(s), nil
}

// NextInt64 consumes one argument as a base-10 integer.
// A malformed value yields ErrNotIntegerArg, a missing one ErrEOF.
func (c *Cursor) NextInt64() (int64, error) {
	arg, err := c.Next()
	if err != nil {
		return 0, err
	}
	n, ok := utils.ParseInt(arg)
	if !ok {
		return 0, ErrNotIntegerArg
	}
	return n, nil
}

// Rest consumes every remaining argument, at least one is required
func (c *Cursor) Rest() ([][]byte, error) {
	if c.pos >= len(c.args) {
		return nil, ErrEOF
	}
	rest := c.args[c.pos:]
	c.pos = len(c.args)
	return rest, nil
}

// Finish asserts nothing is left
func (c *Cursor) Finish() error {
	if c.pos < len(c.args) {
		return ErrTrailing
	}
	return nil
}

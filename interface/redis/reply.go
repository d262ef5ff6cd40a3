package redis

// Reply is the interface of redis serialization protocol message
type Reply interface {
	ToBytes() []byte
}

// ErrorReply is an error frame. It is both a Reply and an error.
type ErrorReply interface {
	Error() string
	ToBytes() []byte
}

package client

import (
	"strconv"
	"strings"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/redis/protocol"
)

// Format renders reply the way redis-cli prints it
func Format(reply redis.Reply) string {
	var sb strings.Builder
	format(&sb, reply, "")
	return sb.String()
}

func format(sb *strings.Builder, reply redis.Reply, indent string) {
	switch r := reply.(type) {
	case *protocol.StatusReply:
		sb.WriteString(r.Status)
	case *protocol.OkReply:
		sb.WriteString("OK")
	case *protocol.PongReply:
		sb.WriteString("PONG")
	case *protocol.IntReply:
		sb.WriteString("(integer) ")
		sb.WriteString(strconv.FormatInt(r.Code, 10))
	case *protocol.BulkReply:
		sb.WriteString(strconv.Quote(string(r.Arg)))
	case *protocol.NullBulkReply:
		sb.WriteString("(nil)")
	case *protocol.MultiBulkReply:
		items := make([]redis.Reply, len(r.Args))
		for i, arg := range r.Args {
			if arg == nil {
				items[i] = protocol.MakeNullBulkReply()
			} else {
				items[i] = protocol.MakeBulkReply(arg)
			}
		}
		formatArray(sb, items, indent)
	case *protocol.ArrayReply:
		formatArray(sb, r.Items, indent)
	case *protocol.EmptyMultiBulkReply:
		sb.WriteString("(empty array)")
	case redis.ErrorReply:
		sb.WriteString("(error) ")
		sb.WriteString(r.Error())
	default:
		sb.WriteString(strings.TrimSuffix(string(reply.ToBytes()), protocol.CRLF))
	}
}

func formatArray(sb *strings.Builder, items []redis.Reply, indent string) {
	if len(items) == 0 {
		sb.WriteString("(empty array)")
		return
	}
	width := len(strconv.Itoa(len(items)))
	for i, item := range items {
		if i > 0 {
			sb.WriteString("\n")
			sb.WriteString(indent)
		}
		label := strconv.Itoa(i + 1)
		sb.WriteString(strings.Repeat(" ", width-len(label)))
		sb.WriteString(label)
		sb.WriteString(") ")
		format(sb, item, indent+strings.Repeat(" ", width+2))
	}
}

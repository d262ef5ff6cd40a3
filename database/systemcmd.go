package database

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/metrics"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/hdt3213/pdis/storage"
)

// Version is reported by INFO
const Version = "1.0.0"

var errDBIndexOutOfRange = protocol.MakeErrReply("ERR DB index is out of range")

func parsePing(c *Cursor) (Command, error) {
	cmd := &Ping{}
	if c.Len() > 0 {
		cmd.Message, _ = c.Next()
	}
	return cmd, nil
}

// execPing replies PONG, or echoes the message
func execPing(cmd *Ping) (redis.Reply, error) {
	if cmd.Message != nil {
		return protocol.MakeBulkReply(cmd.Message), nil
	}
	return protocol.MakePongReply(), nil
}

func parseSelect(c *Cursor) (Command, error) {
	index, err := c.NextInt64()
	if err != nil {
		return nil, err
	}
	if index != 0 {
		return nil, errDBIndexOutOfRange
	}
	return &Select{Index: index}, nil
}

// execSelect accepts only logical database 0
func execSelect(cmd *Select) (redis.Reply, error) {
	return protocol.MakeOkReply(), nil
}

func parseInfo(c *Cursor) (Command, error) {
	cmd := &Info{}
	for c.Len() > 0 {
		section, _ := c.NextKeyword()
		cmd.Sections = append(cmd.Sections, section)
	}
	return cmd, nil
}

type infoSection struct {
	name string
	gen  func(db *DB) (string, error)
}

var infoSections = []infoSection{
	{"server", serverInfo},
	{"clients", clientsInfo},
	{"persistence", persistenceInfo},
	{"stats", statsInfo},
	{"keyspace", keyspaceInfo},
}

// execInfo renders the requested sections, unknown section names render nothing
func execInfo(db *DB, cmd *Info) (redis.Reply, error) {
	wanted := make(map[string]bool)
	all := len(cmd.Sections) == 0
	for _, s := range cmd.Sections {
		switch s {
		case "all", "default", "everything":
			all = true
		default:
			wanted[s] = true
		}
	}
	var parts []string
	for _, section := range infoSections {
		if !all && !wanted[section.name] {
			continue
		}
		text, err := section.gen(db)
		if err != nil {
			return nil, err
		}
		parts = append(parts, text)
	}
	return protocol.MakeBulkReply([]byte(strings.Join(parts, "\r\n"))), nil
}

func serverInfo(db *DB) (string, error) {
	uptime := time.Since(db.startedAt)
	props := config.Properties
	return fmt.Sprintf("# Server\r\n"+
		"redis_version:%s\r\n"+
		"redis_mode:standalone\r\n"+
		"os:%s %s\r\n"+
		"arch_bits:%d\r\n"+
		"go_version:%s\r\n"+
		"process_id:%d\r\n"+
		"run_id:%s\r\n"+
		"tcp_port:%d\r\n"+
		"uptime_in_seconds:%d\r\n"+
		"uptime_in_days:%d\r\n"+
		"storage_engine:%s\r\n"+
		"transport:%s\r\n"+
		"config_file:%s\r\n",
		Version,
		runtime.GOOS, runtime.GOARCH,
		32<<(^uint(0)>>63),
		runtime.Version(),
		os.Getpid(),
		props.RunID,
		props.Port,
		int64(uptime.Seconds()),
		int64(uptime.Hours()/24),
		props.Engine,
		props.Transport,
		props.CfPath), nil
}

func clientsInfo(db *DB) (string, error) {
	return fmt.Sprintf("# Clients\r\n"+
		"connected_clients:%d\r\n"+
		"maxclients:%d\r\n",
		metrics.ConnectedClients(),
		config.Properties.MaxClients), nil
}

func persistenceInfo(db *DB) (string, error) {
	text := fmt.Sprintf("# Persistence\r\n"+
		"rdb_changes_since_last_save:%d\r\n"+
		"rdb_last_save_time:%d\r\n",
		db.dirty,
		db.lastSave.Unix())
	if sizer, ok := db.engine.(storage.Sizer); ok {
		lsm, vlog := sizer.Size()
		text += fmt.Sprintf("engine_lsm_size:%d\r\nengine_vlog_size:%d\r\n", lsm, vlog)
	}
	return text, nil
}

func statsInfo(db *DB) (string, error) {
	return fmt.Sprintf("# Stats\r\n"+
		"total_connections_received:%d\r\n"+
		"total_commands_processed:%d\r\n",
		metrics.TotalConnections(),
		metrics.TotalCommands()), nil
}

func keyspaceInfo(db *DB) (string, error) {
	n, err := db.Len()
	if err != nil {
		return "", err
	}
	metrics.SetKeyspaceKeys(n)
	return fmt.Sprintf("# Keyspace\r\n"+
		"db0:keys=%d,expires=0,avg_ttl=0\r\n", n), nil
}

// execSave writes every key into an RDB file
func execSave(db *DB) (redis.Reply, error) {
	if err := db.SaveRDB(config.Properties.DumpPath()); err != nil {
		return nil, err
	}
	return protocol.MakeOkReply(), nil
}

func parseCommandDesc(c *Cursor) (Command, error) {
	cmd := &CommandDesc{}
	if c.Len() == 0 {
		return cmd, nil
	}
	cmd.Sub, _ = c.NextKeyword()
	for c.Len() > 0 {
		name, _ := c.NextKeyword()
		cmd.Names = append(cmd.Names, name)
	}
	return cmd, nil
}

// execCommandDesc describes the command table
func execCommandDesc(cmd *CommandDesc) (redis.Reply, error) {
	switch cmd.Sub {
	case "":
		names := commandNames()
		items := make([]redis.Reply, len(names))
		for i, name := range names {
			items[i] = cmdTable[name].toDescReply()
		}
		return protocol.MakeArrayReply(items...), nil
	case "count":
		return protocol.MakeIntReply(int64(len(cmdTable))), nil
	case "info":
		items := make([]redis.Reply, len(cmd.Names))
		for i, name := range cmd.Names {
			if desc, ok := cmdTable[name]; ok {
				items[i] = desc.toDescReply()
			} else {
				items[i] = protocol.MakeNullBulkReply()
			}
		}
		return protocol.MakeArrayReply(items...), nil
	case "docs":
		return protocol.MakeEmptyMultiBulkReply(), nil
	}
	return nil, protocol.MakeErrReply("ERR unknown subcommand '" + cmd.Sub + "'")
}

func init() {
	registerCommand("Ping", parsePing, -1, flagReadOnly)
	registerCommand("Select", parseSelect, 2, flagReadOnly)
	registerCommand("Info", parseInfo, -1, flagReadOnly)
	registerCommand("Save", parseNoArgs(&Save{}), 1, flagReadOnly|flagAdmin)
	registerCommand("Command", parseCommandDesc, -1, flagReadOnly)
}

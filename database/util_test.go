package database

import (
	"testing"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/redis/protocol"
)

var testDB = makeTestDB()

func makeTestDB() *DB {
	db, err := MakeMemoryDB()
	if err != nil {
		panic(err)
	}
	return db
}

// testExec parses and applies one command line the way the worker does
func testExec(db *DB, cmdLine [][]byte) redis.Reply {
	cmd, err := ParseCmdLine(cmdLine)
	if err != nil {
		if reply, ok := err.(redis.Reply); ok {
			return reply
		}
		return protocol.MakeErrReply(err.Error())
	}
	reply, _ := (&Worker{db: db}).execute(cmd)
	return reply
}

// withTempDumpDir points SAVE into a temporary directory for the duration of the test
func withTempDumpDir(t *testing.T) *config.ServerProperties {
	saved := config.Properties
	props := *saved
	props.Dir = t.TempDir()
	config.Properties = &props
	t.Cleanup(func() {
		config.Properties = saved
	})
	return &props
}

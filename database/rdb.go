package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hdt3213/pdis/lib/logger"
	"github.com/hdt3213/rdb/core"
	rdbEncoder "github.com/hdt3213/rdb/encoder"
	rdb "github.com/hdt3213/rdb/parser"
)

// SaveRDB dumps the whole keyspace into an RDB file at path.
// The file is written aside and renamed into place, a failed dump leaves the previous one intact.
func (db *DB) SaveRDB(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "temp-*.rdb")
	if err != nil {
		return fmt.Errorf("create tmp rdb file failed: %w", err)
	}
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
	}()
	if err := db.writeRDB(tmpFile); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpFile.Name(), path); err != nil {
		return err
	}
	db.dirty = 0
	db.lastSave = time.Now()
	logger.Infof("db saved on disk: %s", path)
	return nil
}

func (db *DB) writeRDB(file *os.File) error {
	keyCount, err := db.Len()
	if err != nil {
		return err
	}
	encoder := rdbEncoder.NewEncoder(file).EnableCompress()
	if err := encoder.WriteHeader(); err != nil {
		return err
	}
	auxMap := map[string]string{
		"redis-ver":  "6.0.0",
		"redis-bits": "64",
		"ctime":      strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range auxMap {
		if err := encoder.WriteAux(k, v); err != nil {
			return err
		}
	}
	if keyCount > 0 {
		if err := encoder.WriteDBHeader(0, uint64(keyCount), 0); err != nil {
			return err
		}
		var writeErr error
		err = db.ForEach(func(key []byte, v Value) bool {
			writeErr = encoder.WriteStringObject(string(key), v.Bytes())
			return writeErr == nil
		})
		if err != nil {
			return err
		}
		if writeErr != nil {
			return writeErr
		}
	}
	return encoder.WriteEnd()
}

// LoadRDB imports the string keys of an RDB file, replacing existing values.
// Keys of other types are counted as skipped.
func (db *DB) LoadRDB(path string) (loaded int, skipped int, err error) {
	rdbFile, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open rdb file failed: %w", err)
	}
	defer func() {
		_ = rdbFile.Close()
	}()
	decoder := rdb.NewDecoder(rdbFile)
	err = db.importRDB(decoder, &loaded, &skipped)
	return loaded, skipped, err
}

func (db *DB) importRDB(dec *core.Decoder, loaded, skipped *int) error {
	var putErr error
	err := dec.Parse(func(o rdb.RedisObject) bool {
		if o.GetType() != rdb.StringType {
			logger.Warnf("skip %s key %q: only strings are supported", o.GetType(), o.GetKey())
			*skipped++
			return true
		}
		str := o.(*rdb.StringObject)
		putErr = db.PutValue([]byte(str.GetKey()), MakeValue(str.Value))
		if putErr != nil {
			return false
		}
		*loaded++
		return true
	})
	if err != nil {
		return err
	}
	return putErr
}

package config

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// RedisConf reads the redis.conf format: one "key value" pair per line, '#' starts a comment.
// Keys are case-insensitive, yes/no become booleans.
type RedisConf struct{}

// RedisConfParser returns a koanf.Parser for redis.conf files
func RedisConfParser() *RedisConf {
	return &RedisConf{}
}

// Unmarshal parses redis.conf bytes into a flat map
func (p *RedisConf) Unmarshal(b []byte) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		pivot := strings.IndexAny(line, " \t")
		if pivot < 0 {
			return nil, fmt.Errorf("config line %q has no value", line)
		}
		key := strings.ToLower(line[:pivot])
		value := strings.Trim(strings.TrimSpace(line[pivot+1:]), `"`)
		result[key] = normalizeValue(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Marshal writes a flat map back in redis.conf format
func (p *RedisConf) Marshal(m map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s %v\n", k, m[k])
	}
	return buf.Bytes(), nil
}

func normalizeValue(s string) string {
	switch strings.ToLower(s) {
	case "yes", "y", "on":
		return "true"
	case "no", "n", "off":
		return "false"
	}
	return s
}

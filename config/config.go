package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/oklog/ulid/v2"
)

const (
	// DefaultConfPath is read when no config file is given and it exists
	DefaultConfPath = "redis.conf"
	// EnvPrefix marks environment variables overriding the config file, e.g. PDIS_PORT
	EnvPrefix = "PDIS_"
)

// Properties holds global config properties
var Properties *ServerProperties

// ServerProperties defines global config properties
type ServerProperties struct {
	RunID      string `cfg:"runid"`
	Bind       string `cfg:"bind"`
	Port       int    `cfg:"port"`
	MaxClients int    `cfg:"maxclients"`

	// Dir holds the engine files and the RDB dump
	Dir        string        `cfg:"dir"`
	Engine     string        `cfg:"engine"`
	SyncWrites bool          `cfg:"sync-writes"`
	GCInterval time.Duration `cfg:"gc-interval"`
	DBFilename string        `cfg:"dbfilename"`

	// Transport is "tcp" (goroutine per connection) or "gnet" (event loop)
	Transport string `cfg:"transport"`
	// QueueSize bounds the commands waiting for the store worker
	QueueSize int `cfg:"queue-size"`

	MetricsAddr string `cfg:"metrics-addr"`
	LogLevel    string `cfg:"loglevel"`
	LogDir      string `cfg:"logdir"`

	// CfPath is the config file actually loaded
	CfPath string `cfg:"-"`
}

// Default returns the built-in configuration
func Default() *ServerProperties {
	return &ServerProperties{
		Bind:       "0.0.0.0",
		Port:       6379,
		MaxClients: 10000,
		Dir:        "./pdis_data",
		Engine:     "badger",
		GCInterval: 10 * time.Minute,
		DBFilename: "dump.rdb",
		Transport:  "tcp",
		QueueSize:  1000,
		LogLevel:   "info",
	}
}

func init() {
	// default config
	Properties = Default()
}

// Load merges, in increasing priority, the defaults, the config file, PDIS_* environment
// variables and overrides (usually command line flags).
// A config file ending in .yaml or .yml is read as YAML, anything else in redis.conf format.
func Load(configFilename string, overrides map[string]any) (*ServerProperties, error) {
	if configFilename == "" && defaultConfigFileExists() {
		configFilename = DefaultConfPath
	}
	k := koanf.New(".")
	if configFilename != "" {
		var parser koanf.Parser = RedisConfParser()
		if ext := strings.ToLower(filepath.Ext(configFilename)); ext == ".yaml" || ext == ".yml" {
			parser = yaml.Parser()
		}
		if err := k.Load(file.Provider(configFilename), parser); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFilename, err)
		}
	}
	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", "-")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	props := Default()
	if err := k.UnmarshalWithConf("", props, koanf.UnmarshalConf{Tag: "cfg"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	props.CfPath = configFilename
	if props.RunID == "" {
		props.RunID = ulid.Make().String()
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}
	return props, nil
}

// Setup read config file and store properties into Properties
func Setup(configFilename string, overrides map[string]any) error {
	props, err := Load(configFilename, overrides)
	if err != nil {
		return err
	}
	Properties = props
	return nil
}

// Validate checks value ranges and enumerations
func (p *ServerProperties) Validate() error {
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port %d", p.Port)
	}
	switch p.Engine {
	case "badger", "bolt":
	default:
		return fmt.Errorf("unknown engine %q, expect badger or bolt", p.Engine)
	}
	switch p.Transport {
	case "tcp", "gnet":
	default:
		return fmt.Errorf("unknown transport %q, expect tcp or gnet", p.Transport)
	}
	if p.QueueSize <= 0 {
		return fmt.Errorf("queue-size must be positive, got %d", p.QueueSize)
	}
	if p.MaxClients < 0 {
		return fmt.Errorf("maxclients must not be negative, got %d", p.MaxClients)
	}
	if p.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	return nil
}

// Address is the listen address
func (p *ServerProperties) Address() string {
	return net.JoinHostPort(p.Bind, strconv.Itoa(p.Port))
}

// EngineDir is where the storage engine keeps its files
func (p *ServerProperties) EngineDir() string {
	return filepath.Join(p.Dir, p.Engine)
}

// DumpPath is the RDB file written by SAVE
func (p *ServerProperties) DumpPath() string {
	return filepath.Join(p.Dir, p.DBFilename)
}

func defaultConfigFileExists() bool {
	info, err := os.Stat(DefaultConfPath)
	return err == nil && !info.IsDir()
}

// mapProvider feeds a flat map into koanf
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings stores config for Logger
type Settings struct {
	Path       string `yaml:"path"`
	Name       string `yaml:"name"`
	Ext        string `yaml:"ext"`
	TimeFormat string `yaml:"time-format"`
	Level      string `yaml:"level"`
	// rotation, in megabytes and days
	MaxSize    int `yaml:"max-size"`
	MaxBackups int `yaml:"max-backups"`
	MaxAge     int `yaml:"max-age"`
}

// LogLevel is the severity of a message
type LogLevel int

// Output levels
const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

const defaultCallerDepth = 2

var levelFlags = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if l < DEBUG || l > FATAL {
		return "UNKNOWN"
	}
	return levelFlags[l]
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARNING:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}

// ParseLevel converts a level name such as "debug" or "warn" into LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO", "NOTICE":
		return INFO, nil
	case "WARN", "WARNING":
		return WARNING, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// ILogger defines the methods that any logger should implement
type ILogger interface {
	Output(level LogLevel, callerDepth int, msg string)
}

// Logger writes through zap, to stdout and optionally to a rotated file
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

var DefaultLogger ILogger = NewStdoutLogger()

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

// NewStdoutLogger creates a logger which print msg to stdout
func NewStdoutLogger() *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), level)
	return &Logger{
		zap:   zap.New(core, zap.AddCaller()),
		level: level,
	}
}

// NewFileLogger creates a logger which print msg to stdout and log file
func NewFileLogger(settings *Settings) (*Logger, error) {
	lvl, err := ParseLevel(settings.Level)
	if err != nil {
		return nil, err
	}
	if settings.Path != "" {
		if err := os.MkdirAll(settings.Path, 0755); err != nil {
			return nil, fmt.Errorf("create log dir failed: %w", err)
		}
	}
	ext := settings.Ext
	if ext == "" {
		ext = "log"
	}
	name := settings.Name
	if name == "" {
		name = "pdis"
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(settings.Path, name+"."+ext),
		MaxSize:    settings.MaxSize,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAge,
		LocalTime:  true,
	}
	level := zap.NewAtomicLevelAt(lvl.zapLevel())
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotator), level),
	)
	return &Logger{
		zap:   zap.New(core, zap.AddCaller()),
		level: level,
	}, nil
}

// Setup initializes DefaultLogger
func Setup(settings *Settings) {
	logger, err := NewFileLogger(settings)
	if err != nil {
		panic(err)
	}
	DefaultLogger = logger
}

// SetLevel changes the minimal level of DefaultLogger
func SetLevel(level LogLevel) {
	if l, ok := DefaultLogger.(*Logger); ok {
		l.level.SetLevel(level.zapLevel())
	}
}

// Output sends a msg to logger
func (logger *Logger) Output(level LogLevel, callerDepth int, msg string) {
	msg = strings.TrimSuffix(msg, "\n")
	l := logger.zap.WithOptions(zap.AddCallerSkip(callerDepth))
	switch level {
	case DEBUG:
		l.Debug(msg)
	case INFO:
		l.Info(msg)
	case WARNING:
		l.Warn(msg)
	case ERROR:
		l.Error(msg)
	case FATAL:
		l.Fatal(msg)
	}
}

// Sync flushes buffered entries
func (logger *Logger) Sync() error {
	return logger.zap.Sync()
}

// Debug logs debug message through DefaultLogger
func Debug(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.Output(DEBUG, defaultCallerDepth, msg)
}

// Debugf logs debug message through DefaultLogger
func Debugf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.Output(DEBUG, defaultCallerDepth, msg)
}

// Info logs message through DefaultLogger
func Info(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.Output(INFO, defaultCallerDepth, msg)
}

// Infof logs message through DefaultLogger
func Infof(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.Output(INFO, defaultCallerDepth, msg)
}

// Warn logs warning message through DefaultLogger
func Warn(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.Output(WARNING, defaultCallerDepth, msg)
}

// Warnf logs warning message through DefaultLogger
func Warnf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.Output(WARNING, defaultCallerDepth, msg)
}

// Error logs error message through DefaultLogger
func Error(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.Output(ERROR, defaultCallerDepth, msg)
}

// Errorf logs error message through DefaultLogger
func Errorf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.Output(ERROR, defaultCallerDepth, msg)
}

// Fatal prints error message then stop the program
func Fatal(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.Output(FATAL, defaultCallerDepth, msg)
}

// Sync flushes DefaultLogger if it buffers
func Sync() {
	if l, ok := DefaultLogger.(*Logger); ok {
		_ = l.Sync()
	}
}

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity level of log messages.
type LogLevel int

// Log level constants defining message severity.
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// ParseLogLevel converts a string log level to its LogLevel constant.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger provides structured logging with level-based filtering and log rotation.
type Logger struct {
	loggers map[LogLevel]*log.Logger
	level   LogLevel
	mu      sync.RWMutex
}

var instance *Logger
var once sync.Once

// Init initializes the global logger instance with default configuration at INFO level.
func Init(logPath string) {
	once.Do(func() {
		instance = NewLogger(logPath, INFO)
	})
}

// InitWithConfig initializes the global logger instance with custom log rotation configuration.
func InitWithConfig(logPath string, level LogLevel, maxSize, maxBackups, maxAge int, compress bool) {
	once.Do(func() {
		instance = NewLoggerWithConfig(logPath, level, maxSize, maxBackups, maxAge, compress)
	})
}

// NewLogger creates a new logger instance with default log rotation settings.
func NewLogger(logPath string, level LogLevel) *Logger {
	return NewLoggerWithConfig(logPath, level, 10, 3, 28, true)
}

// NewLoggerWithConfig creates a new logger instance with custom log rotation configuration.
func NewLoggerWithConfig(logPath string, level LogLevel, maxSize, maxBackups, maxAge int, compress bool) *Logger {
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("cannot create directory log: %v", err)
	}

	logFile := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   compress,
	}
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	flags := log.LstdFlags | log.Lshortfile

	loggers := make(map[LogLevel]*log.Logger)
	for lvl, prefix := range map[LogLevel]string{
		DEBUG: "[DEBUG] ",
		INFO:  "[INFO] ",
		WARN:  "[WARN] ",
		ERROR: "[ERROR] ",
		FATAL: "[FATAL] ",
	} {
		loggers[lvl] = log.New(multiWriter, prefix, flags)
	}

	return &Logger{loggers: loggers, level: level}
}

// SetLevel changes the minimum log level for filtering messages.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) output(level LogLevel, msg string) {
	l.mu.RLock()
	enabled := level >= l.level
	l.mu.RUnlock()
	if !enabled {
		return
	}
	l.loggers[level].Output(3, msg)
	if level == FATAL {
		os.Exit(1)
	}
}

// Debugf logs a formatted debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.output(DEBUG, fmt.Sprintf(format, v...))
}

// Infof logs a formatted info-level message.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.output(INFO, fmt.Sprintf(format, v...))
}

// Warnf logs a formatted warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.output(WARN, fmt.Sprintf(format, v...))
}

// Errorf logs a formatted error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output(ERROR, fmt.Sprintf(format, v...))
}

// Fatalf logs a formatted fatal-level message and exits the program.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.output(FATAL, fmt.Sprintf(format, v...))
}

// Global convenience functions.

// Debugf logs a formatted debug-level message using the global logger instance.
func Debugf(format string, v ...interface{}) {
	if instance != nil {
		instance.Debugf(format, v...)
	}
}

// Infof logs a formatted info-level message using the global logger instance.
func Infof(format string, v ...interface{}) {
	if instance != nil {
		instance.Infof(format, v...)
	}
}

// Warnf logs a formatted warning-level message using the global logger instance.
func Warnf(format string, v ...interface{}) {
	if instance != nil {
		instance.Warnf(format, v...)
	}
}

// Errorf logs a formatted error-level message using the global logger instance.
func Errorf(format string, v ...interface{}) {
	if instance != nil {
		instance.Errorf(format, v...)
	}
}

// Fatalf logs a formatted fatal-level message and exits the program using the global logger instance.
func Fatalf(format string, v ...interface{}) {
	if instance != nil {
		instance.Fatalf(format, v...)
	}
}

// SetLevel changes the minimum log level for the global logger instance.
func SetLevel(level LogLevel) {
	if instance != nil {
		instance.SetLevel(level)
	}
}

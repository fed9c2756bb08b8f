package common

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/lni/dragonboat/v4/logger"
)

// LoggerNames lists the loggers of this repository configured by InitLoggers
var LoggerNames = []string{"migrate", "multi", "redisstore", "cmd"}

// levelLabels are the level columns of a log line
var levelLabels = map[logger.LogLevel]string{
	logger.DEBUG:   "DEBUG",
	logger.INFO:    "INFO",
	logger.WARNING: "WARN",
	logger.ERROR:   "ERROR",
}

// logOutput is where all loggers write to. stdout carries the progress output.
var logOutput io.Writer = os.Stderr

// lineLogger implements dragonboats logger.ILogger. Every message is written as
// one "LEVEL | package | message" line.
type lineLogger struct {
	pkg   string
	level logger.LogLevel
	out   *log.Logger
}

func newLineLogger(pkg string) logger.ILogger {
	return &lineLogger{
		pkg:   pkg,
		level: logger.INFO,
		out:   log.New(logOutput, "", log.Ldate|log.Ltime),
	}
}

func (l *lineLogger) SetLevel(level logger.LogLevel) { l.level = level }

func (l *lineLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args)
}

func (l *lineLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args)
}

func (l *lineLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args)
}

func (l *lineLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args)
}

func (l *lineLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("%-5s | %-10s | %s", "PANIC", l.pkg, msg)
	panic(msg)
}

func (l *lineLogger) logf(level logger.LogLevel, format string, args []interface{}) {
	if l.level < level {
		return
	}
	l.out.Printf("%-5s | %-10s | %s", levelLabels[level], l.pkg, fmt.Sprintf(format, args...))
}

// InitLoggers installs the line logger as dragonboats logger factory and sets
// the level of all loggers of this repository.
//
// logger.GetLogger hands out proxies that are bound to the factory on first use,
// so this must run before anything logs.
func InitLoggers(level logger.LogLevel) {
	logger.SetLoggerFactory(newLineLogger)
	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
}

// Package logging wraps logrus with the append-only, level-thresholded,
// reopen-on-rotate log the spec describes (spec §4.8 table, §6 "Log record
// format"). Every component in this repo takes a *Logger as an explicit
// constructor argument rather than reaching for a package-level logger
// (spec §9, "Global state": the logger is the one exception to "no mutable
// singleton", and even it is passed in explicitly).
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level mirrors the per-mapping log_level attribute: 0=err only, 1=+warn,
// 2=+info, 3=+debug (spec §4.8).
type Level int

const (
	LevelError Level = 0
	LevelWarn  Level = 1
	LevelInfo  Level = 2
	LevelDebug Level = 3
)

// Logger is a level-thresholded, file-backed log matching the wire format
// other P4DTG tooling parses: "<UTC yyyy/mm/dd hh:mm:ss> UTC: <message>\n".
type Logger struct {
	mu       sync.Mutex
	path     string
	level    Level
	file     *os.File
	inode    os.FileInfo
	entry    *logrus.Logger
}

// fixedFormatter renders exactly the spec's log line, ignoring logrus's own
// level/field formatting — this log is read by the GUI and service wrapper,
// which depend on the original tool's fixed format.
type fixedFormatter struct{}

func (fixedFormatter) Format(e *logrus.Entry) ([]byte, error) {
	ts := e.Time.UTC().Format("2006/01/02 15:04:05")
	line := fmt.Sprintf("%s UTC: %s\n", ts, e.Message)
	return []byte(line), nil
}

// Open creates or appends to the log file at path, thresholded at level.
func Open(path string, level Level) (*Logger, error) {
	l := &Logger{path: path, level: level}
	if err := l.openFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	log := logrus.New()
	log.SetOutput(f)
	log.SetFormatter(fixedFormatter{})
	log.SetLevel(logrus.TraceLevel)

	l.file = f
	l.inode = fi
	l.entry = log
	return nil
}

// reopenIfRotated detects that path was removed/replaced out from under the
// open handle (log rotation) and reopens it, matching spec §6 "the file
// reopens automatically if removed (log-rotation safe)".
func (l *Logger) reopenIfRotated() {
	fi, err := os.Stat(l.path)
	if err != nil || !os.SameFile(fi, l.inode) {
		l.file.Close()
		if err := l.openFile(); err != nil {
			// Best effort: keep writing to the old (now detached) handle
			// rather than losing the process's only error channel.
			return
		}
	}
}

func (l *Logger) log(level Level, logrusLevel logrus.Level, format string, args ...interface{}) {
	if level > l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reopenIfRotated()
	l.entry.Log(logrusLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, logrus.ErrorLevel, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, logrus.WarnLevel, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, logrus.InfoLevel, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, logrus.DebugLevel, format, args...) }

// Close releases the underlying file handle. A Logger without a file
// (Noop) has nothing to release and returns nil.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Noop returns a Logger that discards everything, for tests that don't care
// about log output.
func Noop() *Logger {
	log := logrus.New()
	log.SetOutput(discard{})
	return &Logger{level: LevelDebug, entry: log, file: nil, inode: fakeInfo{}}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fakeInfo struct{ os.FileInfo }

func (fakeInfo) Name() string       { return "noop" }
func (fakeInfo) Size() int64        { return 0 }
func (fakeInfo) Mode() os.FileMode  { return 0 }
func (fakeInfo) ModTime() time.Time { return time.Time{} }
func (fakeInfo) IsDir() bool        { return false }
func (fakeInfo) Sys() interface{}   { return nil }

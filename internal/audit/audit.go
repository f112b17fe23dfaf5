// Package audit records tool calls to an append-only JSONL log.
//
// Each line is one Entry. When the log grows past its size limit it is
// compressed to <path>.1.gz, replacing any previous archive, and a fresh
// log is started.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/dgerlanc/mayi/internal/constants"
	"github.com/dgerlanc/mayi/internal/logger"
)

// TimestampFormat is the format used for audit log timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Sources of audit entries.
const (
	SourceHook  = "hook"
	SourceProxy = "proxy"
	SourceSDK   = "sdk"
)

// Entry is a single audit record.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	ToolName  string          `json:"toolName"`
	Args      json.RawMessage `json:"args"`
	Decision  string          `json:"decision,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Source    string          `json:"source,omitempty"`
}

// DefaultLogPath returns the audit log path: $MAYI_AUDIT_LOG, or
// ~/.local/share/mayi/audit.log.
func DefaultLogPath() (string, error) {
	if p := os.Getenv(constants.EnvAuditLog); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.XDGDataSubdir, constants.AppName, constants.AuditLogFileName), nil
}

// ArchivePath returns where a rotated log is compressed to.
func ArchivePath(path string) string {
	return path + ".1.gz"
}

// Logger appends entries to one log file. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	size     int64
}

// Open opens (creating if needed) the log at path. maxBytes <= 0 disables
// rotation.
func Open(path string, maxBytes int64) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	l := &Logger{path: path, maxBytes: maxBytes}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.FileMode)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat audit log: %w", err)
	}
	l.file = f
	l.size = info.Size()
	return nil
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Log appends e, filling in ID and Timestamp when empty.
func (l *Logger) Log(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	if len(e.Args) == 0 {
		e.Args = json.RawMessage("{}")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if l.maxBytes > 0 && l.size > 0 && l.size+int64(len(data)) > l.maxBytes {
		if err := l.rotate(); err != nil {
			logger.Warn("audit log rotation failed", "path", l.path, "error", err)
		}
	}

	n, err := l.file.Write(data)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// rotate compresses the current log into the archive and truncates it.
// Must be called with l.mu held.
func (l *Logger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	if err := compress(l.path, ArchivePath(l.path)); err != nil {
		// Keep appending to the oversized log rather than losing entries.
		if openErr := l.open(); openErr != nil {
			return openErr
		}
		return err
	}
	if err := os.Truncate(l.path, 0); err != nil {
		logger.Debug("failed to truncate rotated audit log", "error", err)
	}
	logger.Debug("audit log rotated", "path", l.path, "archive", ArchivePath(l.path))
	return l.open()
}

func compress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FileMode)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// Close closes the log file. Closing twice is not an error.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var (
	mu      sync.Mutex
	std     *Logger
	enabled bool
)

// Init opens the process-wide audit log. An empty path uses DefaultLogPath.
// With disable set, logging is turned off and nothing is opened.
func Init(path string, disable bool) error {
	mu.Lock()
	defer mu.Unlock()

	if disable {
		enabled = false
		return nil
	}

	if path == "" {
		var err error
		path, err = DefaultLogPath()
		if err != nil {
			logger.Debug("failed to get default audit log path", "error", err)
			return err
		}
	}

	l, err := Open(path, constants.DefaultAuditMaxBytes)
	if err != nil {
		logger.Debug("failed to open audit log", "error", err)
		return err
	}
	if std != nil {
		std.Close()
	}
	std = l
	enabled = true
	logger.Debug("audit logging initialized", "path", path)
	return nil
}

// Log writes an entry to the process-wide audit log. It is a no-op when
// audit logging is not initialized or disabled.
func Log(entry Entry) error {
	mu.Lock()
	l, on := std, enabled
	mu.Unlock()

	if !on || l == nil {
		return nil
	}
	if err := l.Log(entry); err != nil {
		logger.Debug("failed to write audit entry", "error", err)
		return err
	}
	return nil
}

// Close closes the process-wide audit log.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	enabled = false
	if std == nil {
		return nil
	}
	err := std.Close()
	std = nil
	return err
}

// IsEnabled returns whether audit logging is enabled.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Reset resets the audit state. Used for testing.
func Reset() {
	Close()
}

package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook appends run progress to a plain text file under the run's logs
// directory. Logging never fails the caller: a broken disk loses the line,
// not the task.
type Logbook struct {
	path string
	mu   sync.Mutex
}

// New creates a logbook at path, creating parent directories as needed.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Logbook{path: path}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one timestamped entry. Safe on a nil logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	fmt.Fprintf(file, "%s %-5s %s\n",
		time.Now().UTC().Format(time.RFC3339), level, strings.TrimSpace(message))
}

// Tail returns the last maxLines entries, oldest first.
func (l *Logbook) Tail(maxLines int) []string {
	if l == nil || maxLines <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	// Bounded window so a long-running log does not pin its whole
	// contents in memory.
	window := make([]string, 0, maxLines)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(window) == maxLines {
			copy(window, window[1:])
			window = window[:maxLines-1]
		}
		window = append(window, scanner.Text())
	}
	if len(window) == 0 {
		return nil
	}
	return window
}

func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// Scoped is a view of the logbook that prefixes entries with a component
// name, e.g. "[executor] dispatched find_product".
type Scoped struct {
	logbook *Logbook
	name    string
}

// Scoped creates a component-scoped view of this logbook.
func (l *Logbook) Scoped(name string) *Scoped {
	return &Scoped{logbook: l, name: strings.TrimSpace(name)}
}

func (s *Scoped) prefix(message string) string {
	if s == nil || s.name == "" {
		return message
	}
	return fmt.Sprintf("[%s] %s", s.name, message)
}

func (s *Scoped) Info(format string, args ...any) {
	if s == nil {
		return
	}
	s.logbook.Append(LevelInfo, s.prefix(fmt.Sprintf(format, args...)))
}

func (s *Scoped) Warn(format string, args ...any) {
	if s == nil {
		return
	}
	s.logbook.Append(LevelWarn, s.prefix(fmt.Sprintf(format, args...)))
}

func (s *Scoped) Error(format string, args ...any) {
	if s == nil {
		return
	}
	s.logbook.Append(LevelError, s.prefix(fmt.Sprintf(format, args...)))
}

// Printf satisfies logger interfaces expecting the standard signature.
func (s *Scoped) Printf(format string, args ...any) {
	s.Info(format, args...)
}

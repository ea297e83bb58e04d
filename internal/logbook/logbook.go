package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/render-loop/internal/dispatch"
	"github.com/kingrea/render-loop/internal/plan"
)

// Level represents the outcome class of a history entry.
type Level string

const (
	LevelOK   Level = "OK"
	LevelFail Level = "FAIL"
)

// Logbook keeps a plain-text history of renders, one line per invocation.
// It satisfies dispatch.Observer.
type Logbook struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path, now: time.Now}, nil
}

// Started is a no-op; only finished renders are recorded.
func (l *Logbook) Started(string, plan.Invocation) {}

// Finished records one outcome.
func (l *Logbook) Finished(runID string, outcome dispatch.Outcome) {
	level := LevelOK
	if !outcome.Succeeded() {
		level = LevelFail
	}
	l.Append(level, fmt.Sprintf("run=%s value=%d exit=%d output=%s",
		runID,
		outcome.Invocation.Value,
		outcome.ExitCode,
		outcome.Invocation.Output,
	))
}

// Append writes a single entry to the logbook. Write failures are dropped so
// history never interferes with rendering.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-4s %s\n",
		l.now().UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(message),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries along with the
// total number of entries in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

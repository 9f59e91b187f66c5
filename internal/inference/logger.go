package inference

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const dumpWidth = 60

// InferenceLogger 推理日志
// Progress lines go to the console and the prompt log; prompt and response
// dumps go to the prompt log only. A nil *InferenceLogger discards everything.
type InferenceLogger struct {
	mu      sync.Mutex
	console io.Writer
	file    io.WriteCloser
}

func NewInferenceLogger(console io.Writer) *InferenceLogger {
	if console == nil {
		console = io.Discard
	}
	return &InferenceLogger{console: console}
}

// SetFile attaches the prompt log, replacing any previous one without closing it.
func (l *InferenceLogger) SetFile(f io.WriteCloser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = f
}

// CloseFile flushes and closes the prompt log, if any.
func (l *InferenceLogger) CloseFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	if s, ok := l.file.(interface{ Sync() error }); ok {
		s.Sync()
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *InferenceLogger) Printf(format string, a ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.console
	if l.file != nil {
		w = io.MultiWriter(l.console, l.file)
	}
	fmt.Fprintf(w, format, a...)
}

// Dump writes body framed under title to the prompt log.
func (l *InferenceLogger) Dump(title, body string) {
	if l == nil {
		return
	}
	head := "┌─ " + title + " "
	var b strings.Builder
	b.WriteString("\n" + head)
	if n := dumpWidth - len([]rune(head)); n > 0 {
		b.WriteString(strings.Repeat("─", n))
	}
	b.WriteString("\n" + strings.TrimRight(body, "\n") + "\n")
	b.WriteString("└" + strings.Repeat("─", dumpWidth-1) + "\n\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		io.WriteString(l.file, b.String())
	}
}

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Logger 进度日志
// Counts finished tasks per phase and reports elapsed time and ETA after
// each one. A nil *Logger is silent.
type Logger struct {
	mu  sync.Mutex
	out io.Writer

	started time.Time
	phase   phase
	running map[string]time.Time

	succeeded int
	failures  []failure
}

type phase struct {
	name  string
	total int
	done  int
	start time.Time
}

type failure struct {
	phase, task, reason string
}

// NewLogger writes to out, or stdout when out is nil
func NewLogger(out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		out:     out,
		started: time.Now(),
		running: map[string]time.Time{},
	}
}

func (l *Logger) banner(title string) {
	fmt.Fprintf(l.out, "\n%s\n%s\n%s\n\n", rule, title, rule)
}

// SetPhase 开始新阶段, resetting the task counters
func (l *Logger) SetPhase(name string, total int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = phase{name: name, total: total, start: time.Now()}
	l.running = map[string]time.Time{}
	l.banner("📍 " + name)
}

func (l *Logger) StartTask(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running[name] = time.Now()
	fmt.Fprintf(l.out, "[%s] 🔄 Started\n", name)
}

func (l *Logger) CompleteTask(name string) {
	l.finish(name, nil)
}

func (l *Logger) FailTask(name string, err error) {
	l.finish(name, err)
}

// finish ignores tasks that were never started in this phase.
func (l *Logger) finish(name string, err error) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	began, ok := l.running[name]
	if !ok {
		return
	}
	delete(l.running, name)
	l.phase.done++

	if err != nil {
		l.failures = append(l.failures, failure{phase: l.phase.name, task: name, reason: err.Error()})
		fmt.Fprintf(l.out, "[%s] ✗ Failed: %v\n", name, err)
	} else {
		l.succeeded++
		fmt.Fprintf(l.out, "[%s] ✓ Completed (%.2fs)\n", name, time.Since(began).Seconds())
	}

	if l.phase.total > 0 {
		elapsed := time.Since(l.phase.start)
		fmt.Fprintf(l.out, "📊 Progress: %d/%d (%.1f%%) | Elapsed: %s | ETA: %s\n\n",
			l.phase.done, l.phase.total, 100*float64(l.phase.done)/float64(l.phase.total),
			formatDuration(elapsed), formatDuration(l.phase.eta(elapsed)))
	}
}

// eta extrapolates the mean task time over what is left.
func (p phase) eta(elapsed time.Duration) time.Duration {
	if p.done == 0 || p.done >= p.total {
		return 0
	}
	return elapsed / time.Duration(p.done) * time.Duration(p.total-p.done)
}

// PrintSummary 打印最终汇总, across all phases
func (l *Logger) PrintSummary() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.banner("📊 Final Summary")
	fmt.Fprintf(l.out, "✓ Completed: %d\n", l.succeeded)
	fmt.Fprintf(l.out, "✗ Failed: %d\n", len(l.failures))
	fmt.Fprintf(l.out, "⏱️  Total Time: %s\n", formatDuration(time.Since(l.started)))

	if len(l.failures) > 0 {
		fmt.Fprintln(l.out, "\n❌ Failed Tasks:")
		for _, f := range l.failures {
			fmt.Fprintf(l.out, "  - [%s] %s: %s\n", f.phase, f.task, f.reason)
		}
	}
	fmt.Fprintln(l.out)
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "N/A"
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.printf("ℹ️  ", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.printf("⚠️  ", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.printf("❌ ", format, args...)
}

func (l *Logger) printf(prefix, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, prefix+format+"\n", args...)
}

package ambiance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minAnalysisLen         = 10
	maxAnalysisLen         = 4000
	defaultAnalyzerTimeout = 60 * time.Second

	// Longest stderr tail kept in a ProcessError.
	maxStderrLen = 2048
)

// ProcessError describes a failed analyzer run. Op is one of "start",
// "timeout", "exit" or "decode".
type ProcessError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	switch e.Op {
	case "exit":
		return fmt.Sprintf("ambiance: analyzer exited with code %d: %s", e.ExitCode, e.Stderr)
	case "timeout":
		return "ambiance: analyzer timed out"
	default:
		return fmt.Sprintf("ambiance: analyzer %s: %v", e.Op, e.Err)
	}
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ProcessAnalyzer runs an external command as `<command...> --file <path>`
// and reads a Result as JSON from its stdout. Stderr is treated as logs.
type ProcessAnalyzer struct {
	command []string
	timeout time.Duration
}

func NewProcessAnalyzer(command []string, timeout time.Duration) *ProcessAnalyzer {
	if timeout <= 0 {
		timeout = defaultAnalyzerTimeout
	}
	return &ProcessAnalyzer{command: command, timeout: timeout}
}

// Available reports whether the analyzer executable can be found.
func (p *ProcessAnalyzer) Available() bool {
	if p == nil || len(p.command) == 0 {
		return false
	}
	_, err := exec.LookPath(p.command[0])
	return err == nil
}

func (p *ProcessAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if len(p.command) == 0 {
		return Result{}, &ProcessError{Op: "start", Err: errors.New("no command configured")}
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minAnalysisLen {
		return neutralResult(""), nil
	}
	if r := []rune(text); len(r) > maxAnalysisLen {
		text = string(r[:maxAnalysisLen]) + "..."
	}

	tmp, err := os.CreateTemp("", "storia_text_*.txt")
	if err != nil {
		return Result{}, &ProcessError{Op: "start", Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	_, err = tmp.WriteString(text)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Result{}, &ProcessError{Op: "start", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string{}, p.command[1:]...), "--file", tmp.Name())
	cmd := exec.CommandContext(ctx, p.command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	analyzerDuration.Observe(time.Since(start).Seconds())

	if stderr.Len() > 0 {
		slog.Debug("ambiance: analyzer logs", "stderr", tail(stderr.String(), maxStderrLen))
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{}, &ProcessError{Op: "timeout", Err: ctx.Err(), Stderr: tail(stderr.String(), maxStderrLen)}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, &ProcessError{
				Op:       "exit",
				ExitCode: exitErr.ExitCode(),
				Stderr:   tail(stderr.String(), maxStderrLen),
				Err:      err,
			}
		}
		return Result{}, &ProcessError{Op: "start", Err: err}
	}

	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return Result{}, &ProcessError{Op: "decode", Err: err, Stderr: tail(stderr.String(), maxStderrLen)}
	}
	if res.AmbiancePrompt == "" {
		res.AmbiancePrompt = DefaultPrompt
	}
	if res.Mood == "" {
		res.Mood = MoodNeutral
	}
	return res, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

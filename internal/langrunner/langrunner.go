// Package langrunner maps a language tag and source bytes to a subprocess
// invocation, capturing its output under a per-job wall-clock deadline.
package langrunner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/codescord/broker/internal/protocol"
)

// command describes how to turn a source file into a running process for one
// language. Interpreted languages set Compile to nil; compiled languages set
// it to the compile step, run against the produced binary.
type command struct {
	ext     string
	compile func(ctx context.Context, dir, src string) *exec.Cmd
	run     func(ctx context.Context, dir, src string, argv []string) *exec.Cmd
}

// Runner implements protocol.Runner by shelling out to each language's
// toolchain inside a fresh temporary directory, mirroring the way the
// teacher's sandbox executor wraps an external process with a context
// deadline and fully drains its pipes before reaping it.
type Runner struct {
	timeout time.Duration
	log     *slog.Logger
	table   map[string]command
}

// New builds a Runner with the given per-job timeout (the protocol default
// is 30 seconds).
func New(timeout time.Duration, log *slog.Logger) *Runner {
	r := &Runner{timeout: timeout, log: log}
	r.table = defaultTable()
	return r
}

var aliases = map[string]string{
	"py":  "python",
	"c++": "cpp",
	"js":  "javascript",
}

func resolve(lang string) string {
	if canon, ok := aliases[lang]; ok {
		return canon
	}
	return lang
}

func defaultTable() map[string]command {
	interp := func(ext, bin string) command {
		return command{
			ext: ext,
			run: func(ctx context.Context, dir, src string, argv []string) *exec.Cmd {
				args := append([]string{src}, argv...)
				return exec.CommandContext(ctx, bin, args...)
			},
		}
	}
	return map[string]command{
		"python":     interp(".py", "python3"),
		"javascript": interp(".js", "node"),
		"php":        interp(".php", "php"),
		"go": {
			ext: ".go",
			run: func(ctx context.Context, dir, src string, argv []string) *exec.Cmd {
				args := append([]string{"run", src}, argv...)
				return exec.CommandContext(ctx, "go", args...)
			},
		},
		"java": {
			ext: ".java",
			compile: func(ctx context.Context, dir, src string) *exec.Cmd {
				return exec.CommandContext(ctx, "javac", "-d", dir, src)
			},
			run: func(ctx context.Context, dir, src string, argv []string) *exec.Cmd {
				args := append([]string{"-cp", dir, "script"}, argv...)
				return exec.CommandContext(ctx, "java", args...)
			},
		},
		"cpp": {
			ext: ".cpp",
			compile: func(ctx context.Context, dir, src string) *exec.Cmd {
				return exec.CommandContext(ctx, "g++", "-O2", "-o", filepath.Join(dir, "a.out"), src)
			},
			run: func(ctx context.Context, dir, src string, argv []string) *exec.Cmd {
				return exec.CommandContext(ctx, filepath.Join(dir, "a.out"), argv...)
			},
		},
		"c": {
			ext: ".c",
			compile: func(ctx context.Context, dir, src string) *exec.Cmd {
				return exec.CommandContext(ctx, "gcc", "-O2", "-o", filepath.Join(dir, "a.out"), src)
			},
			run: func(ctx context.Context, dir, src string, argv []string) *exec.Cmd {
				return exec.CommandContext(ctx, filepath.Join(dir, "a.out"), argv...)
			},
		},
		"cs": {
			ext: ".cs",
			compile: func(ctx context.Context, dir, src string) *exec.Cmd {
				return exec.CommandContext(ctx, "mcs", "-out:"+filepath.Join(dir, "a.exe"), src)
			},
			run: func(ctx context.Context, dir, src string, argv []string) *exec.Cmd {
				args := append([]string{filepath.Join(dir, "a.exe")}, argv...)
				return exec.CommandContext(ctx, "mono", args...)
			},
		},
	}
}

// splitArgv splits a space-separated argv string into tokens; empty input
// yields no arguments.
func splitArgv(argv string) []string {
	if argv == "" {
		return nil
	}
	var out []string
	var cur []byte
	for i := 0; i < len(argv); i++ {
		if argv[i] == ' ' {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, argv[i])
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// Run implements protocol.Runner.
func (r *Runner) Run(ctx context.Context, lang string, code []byte, argv string) ([]byte, bool, error) {
	cmdSpec, ok := r.table[resolve(lang)]
	if !ok {
		return nil, false, protocol.ErrLangUnsupported
	}

	dir, err := os.MkdirTemp("", "codescord-job-*")
	if err != nil {
		return nil, false, fmt.Errorf("langrunner: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "script"+cmdSpec.ext)
	if err := os.WriteFile(srcPath, code, 0o644); err != nil {
		return nil, false, fmt.Errorf("langrunner: write source: %w", err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if cmdSpec.compile != nil {
		compileCmd := cmdSpec.compile(jobCtx, dir, srcPath)
		out, exitOK, err := runCaptured(jobCtx, compileCmd)
		if err != nil {
			return nil, false, err
		}
		if !exitOK {
			return out, false, nil
		}
	}

	runCmd := cmdSpec.run(jobCtx, dir, srcPath, splitArgv(argv))
	return runCaptured(jobCtx, runCmd)
}

// runCaptured runs cmd to completion, draining stdout/stderr fully before
// reaping the process to avoid pipe-buffer deadlock. ok mirrors a zero exit
// code; on success out is stdout, otherwise stderr.
func runCaptured(ctx context.Context, cmd *exec.Cmd) ([]byte, bool, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, false, protocol.ErrJobTimeout
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			return stderr.Bytes(), false, nil
		}
		return nil, false, fmt.Errorf("langrunner: exec: %w", runErr)
	}
	return stdout.Bytes(), true, nil
}

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// TesseractEngine runs the tesseract command line tool, feeding the image on
// stdin and reading text from stdout.
type TesseractEngine struct {
	path   string
	runner commandRunner
}

func NewTesseractEngine(path string) *TesseractEngine {
	if path == "" {
		path = "tesseract"
	}
	return &TesseractEngine{path: path, runner: &execRunner{}}
}

func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, opts Options) (string, error) {
	res, err := e.runner.Run(ctx, image, e.path, tesseractArgs(opts)...)
	if err != nil {
		stderr := strings.TrimSpace(res.Stderr)
		return "", fmt.Errorf("tesseract exit %d: %s: %w", res.ExitCode, stderr, err)
	}
	return res.Stdout, nil
}

func tesseractArgs(opts Options) []string {
	preserve := "0"
	if opts.PreserveInterwordSpaces {
		preserve = "1"
	}
	args := []string{"stdin", "stdout"}
	if opts.Languages != "" {
		args = append(args, "-l", opts.Languages)
	}
	return append(args,
		"--psm", strconv.Itoa(opts.PageSegMode),
		"-c", "preserve_interword_spaces="+preserve,
	)
}

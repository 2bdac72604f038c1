package render

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Runner executes one encoder invocation and returns whatever the encoder
// wrote to stderr, which is where ffmpeg reports everything.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// FFmpeg runs commands against an ffmpeg binary. The zero value is not
// usable; construct with NewFFmpeg.
type FFmpeg struct {
	binary string
}

// NewFFmpeg returns a runner for the given binary, defaulting to whatever
// "ffmpeg" resolves to on PATH.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// Run executes the invocation, killing the process if ctx ends first.
func (f *FFmpeg) Run(ctx context.Context, cmd Command) (string, error) {
	proc := exec.CommandContext(ctx, f.binary, cmd.Args...)
	if cmd.Stdin != "" {
		proc.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stderr bytes.Buffer
	proc.Stderr = &stderr
	err := proc.Run()
	return stderr.String(), err
}

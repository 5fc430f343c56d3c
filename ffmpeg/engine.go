// Package ffmpeg drives an external ffmpeg process as the H.265 decode engine.
//
// An Engine owns a scratch directory that acts as the engine's addressable
// file space: compressed payloads are staged into it under caller-chosen
// names, transcoded, and the raw output read back. The stage-transcode-
// readback sequence is a critical section; concurrent Transcode calls on one
// Engine serialize against each other. Callers wanting cross-channel
// parallelism use one Engine per concurrent task.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	ffmpeg_go "github.com/u2takey/ffmpeg-go"
)

// PixelFormat selects the decoded sample width and layout.
type PixelFormat string

const (
	// Gray is 8-bit grayscale output.
	Gray PixelFormat = "gray"
	// Gray12LE is a 12-bit value stored in a 16-bit little-endian slot.
	Gray12LE PixelFormat = "gray12le"
)

// BytesPerSample returns the decoded sample size in bytes.
func (p PixelFormat) BytesPerSample() int {
	if p == Gray12LE {
		return 2
	}
	return 1
}

// Stages of a transcode that can fail.
const (
	StageStage     = "stage"
	StageTranscode = "transcode"
	StageReadback  = "readback"
)

// Error reports a failed engine operation. After a transcode failure the
// engine's state is suspect; callers are advised to retry on a fresh handle.
type Error struct {
	Stage string // StageStage, StageTranscode, or StageReadback
	Input string // staged input name
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ffmpeg %s %s: %v", e.Stage, e.Input, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Option configures an Engine.
type Option func(*options)

type options struct {
	root   string
	logger *slog.Logger
}

func defaultOptions() *options {
	return &options{
		logger: slog.Default(),
	}
}

// WithScratchRoot places the engine's scratch directory under root instead
// of the system temp directory.
func WithScratchRoot(root string) Option {
	return func(o *options) {
		o.root = root
	}
}

// WithLogger sets the logger used for default progress reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Engine is a handle to the external decoder. It is safe for concurrent use;
// each Transcode holds the handle exclusively for its full critical section.
type Engine struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
	closed bool
}

// New creates a fully initialized engine with its own scratch directory.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	dir, err := os.MkdirTemp(o.root, "h5j-engine-")
	if err != nil {
		return nil, fmt.Errorf("creating engine scratch directory: %w", err)
	}

	return &Engine{
		dir:    dir,
		logger: o.logger,
	}, nil
}

// Close releases the engine's scratch directory. The engine is unusable
// afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return os.RemoveAll(e.dir)
}

// Job describes one transcode of a compressed payload.
type Job struct {
	// Input is the staged input name. Callers derive it from the container
	// identity and channel name so concurrent channels never collide.
	Input string

	// Data is the H.265 elementary stream.
	Data []byte

	// PixelFormat selects the raw output layout.
	PixelFormat PixelFormat

	// Frames is the expected frame count, used only to report fractional
	// progress. Zero means unknown; progress then fires only on completion.
	Frames int

	// Progress receives fractional completion in [0, 1]. Advisory only.
	// When nil, a throttled percentage is logged instead.
	Progress func(float64)
}

// Transcode stages the payload, runs "auto-detect H.265 in, raw video out"
// through ffmpeg, and reads back the decoded bytes. Staged files are removed
// before returning, so a failure leaves the handle reusable, but the external
// engine makes no guarantee about its internal state after an error; callers
// decoding further channels after a failure should prefer a fresh handle.
func (e *Engine) Transcode(ctx context.Context, job Job) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, &Error{Stage: StageStage, Input: job.Input, Err: errors.New("engine is closed")}
	}
	if job.Input == "" || strings.ContainsRune(job.Input, os.PathSeparator) {
		return nil, &Error{Stage: StageStage, Input: job.Input, Err: errors.New("invalid input name")}
	}

	inPath := filepath.Join(e.dir, job.Input)
	outPath := inPath + "." + string(job.PixelFormat) + ".raw"

	if err := os.WriteFile(inPath, job.Data, 0o644); err != nil {
		return nil, &Error{Stage: StageStage, Input: job.Input, Err: err}
	}
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	progress := job.Progress
	if progress == nil {
		progress = e.defaultProgress(job.Input)
	}
	sock, stopProgress := e.listenProgress(job, progress)
	defer stopProgress()

	stream := ffmpeg_go.Input(inPath, ffmpeg_go.KwArgs{"f": "hevc"}).
		Output(outPath, ffmpeg_go.KwArgs{
			"f":       "rawvideo",
			"pix_fmt": string(job.PixelFormat),
		}).
		OverWriteOutput().
		Silent(true)
	if sock != "" {
		stream = stream.GlobalArgs("-progress", "unix://"+sock)
	}

	cmd := stream.Compile()
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := runCmd(ctx, cmd); err != nil {
		return nil, &Error{Stage: StageTranscode, Input: job.Input, Err: transcodeError(err, &stderr)}
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &Error{Stage: StageReadback, Input: job.Input, Err: err}
	}

	stopProgress()
	progress(1)
	return raw, nil
}

// runCmd runs an exec.Cmd, killing the process when ctx is canceled.
func runCmd(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// transcodeError folds the tail of ffmpeg's stderr into the error message.
func transcodeError(err error, stderr *bytes.Buffer) error {
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	if len(lines) == 0 || lines[len(lines)-1] == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, lines[len(lines)-1])
}

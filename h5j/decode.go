package h5j

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/JaneliaSciComp/web-h5j-loader/ffmpeg"
)

// DecodeOption configures one decode call.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	engine   *ffmpeg.Engine
	progress func(float64)
	logger   *slog.Logger
	parallel int
}

func defaultDecodeOptions() *decodeOptions {
	return &decodeOptions{
		logger:   slog.Default(),
		parallel: runtime.GOMAXPROCS(0),
	}
}

// WithEngine reuses a pre-initialized engine handle instead of constructing
// one per call. Reuse avoids repeated engine initialization when decoding
// many channels or files; it does not change decode results. The engine's
// critical section serializes concurrent decodes sharing one handle.
func WithEngine(e *ffmpeg.Engine) DecodeOption {
	return func(o *decodeOptions) {
		o.engine = e
	}
}

// WithProgress receives fractional decode completion in [0, 1]. Advisory
// only; without it a throttled percentage is logged.
func WithProgress(fn func(float64)) DecodeOption {
	return func(o *decodeOptions) {
		o.progress = fn
	}
}

// WithLogger sets the logger for progress reporting.
func WithLogger(logger *slog.Logger) DecodeOption {
	return func(o *decodeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithParallelism bounds the number of channels DecodeAll decodes at once.
func WithParallelism(n int) DecodeOption {
	return func(o *decodeOptions) {
		if n > 0 {
			o.parallel = n
		}
	}
}

// Decode decodes one channel to samples of the requested width.
//
// The channel's H.265 payload is staged into the engine under a name derived
// from the container identity and channel name, transcoded to raw grayscale
// in the width's pixel format, and the output reinterpreted as samples.
// Failures keep their taxonomy: a bad name is *ChannelNotFoundError, a
// malformed container is *FormatError, and any staging, transcode, or
// readback problem is *ffmpeg.Error.
func (f *File) Decode(ctx context.Context, name string, width SampleWidth, opts ...DecodeOption) (*SampleArray, error) {
	o := defaultDecodeOptions()
	for _, opt := range opts {
		opt(o)
	}

	ds, err := f.channel(name)
	if err != nil {
		return nil, err
	}

	payload, err := ds.ReadRaw()
	if err != nil {
		return nil, &FormatError{Path: "/Channels/" + name, Err: err}
	}

	attrs, err := f.Attributes()
	if err != nil {
		return nil, err
	}
	frames := 0
	if attrs.Channels != nil {
		frames = attrs.Channels.Frames
	}

	eng := o.engine
	if eng == nil {
		eng, err = ffmpeg.New(ffmpeg.WithLogger(o.logger))
		if err != nil {
			return nil, &ffmpeg.Error{Stage: ffmpeg.StageStage, Input: name, Err: err}
		}
		defer eng.Close()
	}

	input := fmt.Sprintf("%s-%s.h265", f.id, sanitizeName(name))
	raw, err := eng.Transcode(ctx, ffmpeg.Job{
		Input:       input,
		Data:        payload,
		PixelFormat: width.PixelFormat(),
		Frames:      frames,
		Progress:    o.progress,
	})
	if err != nil {
		return nil, err
	}

	samples, err := newSampleArray(raw, width, attrs.VoxelCount())
	if err != nil {
		return nil, &ffmpeg.Error{Stage: ffmpeg.StageReadback, Input: input, Err: err}
	}
	return samples, nil
}

// Decode8 decodes one channel to 8-bit samples. The codec's 12-to-8-bit
// quantization is deterministic but lossy.
func (f *File) Decode8(ctx context.Context, name string, opts ...DecodeOption) ([]uint8, error) {
	samples, err := f.Decode(ctx, name, Width8, opts...)
	if err != nil {
		return nil, err
	}
	return samples.U8, nil
}

// Decode16 decodes one channel to 16-bit samples carrying the original
// ≤12-bit values.
func (f *File) Decode16(ctx context.Context, name string, opts ...DecodeOption) ([]uint16, error) {
	samples, err := f.Decode(ctx, name, Width16, opts...)
	if err != nil {
		return nil, err
	}
	return samples.U16, nil
}

// ChannelResult is one channel's outcome from DecodeAll.
type ChannelResult struct {
	Name    string
	Samples *SampleArray
	Err     error
}

// DecodeAll decodes every channel in the container's native order with
// bounded parallelism. Unless an engine is supplied, each concurrent decode
// constructs its own handle, so failures in one channel never touch a
// sibling's engine state. A failed channel is reported in its result; it
// does not abort the others.
func (f *File) DecodeAll(ctx context.Context, width SampleWidth, opts ...DecodeOption) ([]ChannelResult, error) {
	o := defaultDecodeOptions()
	for _, opt := range opts {
		opt(o)
	}

	attrs, err := f.Attributes()
	if err != nil {
		return nil, err
	}
	if attrs == nil || attrs.Channels == nil {
		return nil, nil
	}

	results := make([]ChannelResult, len(attrs.Channels.Names))

	g := new(errgroup.Group)
	g.SetLimit(o.parallel)
	for i, name := range attrs.Channels.Names {
		g.Go(func() error {
			samples, err := f.Decode(ctx, name, width, opts...)
			results[i] = ChannelResult{Name: name, Samples: samples, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// Diagnostic tool for inspecting and decoding H5J files
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/JaneliaSciComp/web-h5j-loader/h5j"
)

func main() {
	channel := flag.String("decode", "", "channel name to decode")
	bits := flag.Int("bits", 8, "sample width for -decode (8 or 16)")
	out := flag.String("o", "", "output file for decoded raw samples")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: h5jinfo [-decode channel -bits 8|16 -o out.raw] <file.h5j>")
		os.Exit(1)
	}
	filename := flag.Arg(0)

	f, err := h5j.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	attrs, err := f.Attributes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to read attributes: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== %s ===\n\n", filename)
	fmt.Printf("image_size:   %v\n", attrs.ImageSize)
	fmt.Printf("voxel_size:   %v\n", attrs.VoxelSize)
	fmt.Printf("channel_spec: %q\n", attrs.ChannelSpec)
	for name, value := range attrs.Unknown {
		fmt.Printf("%s: %v\n", name, value)
	}

	if attrs.Channels == nil {
		fmt.Println("\nNo Channels group.")
	} else {
		cs := attrs.Channels
		fmt.Printf("\nChannels (frames=%d, %dx%d, pad_right=%d, pad_bottom=%d):\n",
			cs.Frames, cs.Width, cs.Height, cs.PadRight, cs.PadBottom)
		for i, name := range cs.Names {
			fmt.Printf("  [%d] %s (content_type=%q)\n", i, name, cs.ContentTypes[i])
		}
	}

	if *channel == "" {
		return
	}
	if *out == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -decode requires -o")
		os.Exit(1)
	}

	width := h5j.Width8
	if *bits == 16 {
		width = h5j.Width16
	} else if *bits != 8 {
		fmt.Fprintf(os.Stderr, "ERROR: -bits must be 8 or 16, got %d\n", *bits)
		os.Exit(1)
	}

	samples, err := f.Decode(context.Background(), *channel, width)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Decode failed: %v\n", err)
		os.Exit(1)
	}

	raw := samples.U8
	if width == h5j.Width16 {
		raw = make([]byte, 2*len(samples.U16))
		for i, v := range samples.U16 {
			raw[2*i] = byte(v)
			raw[2*i+1] = byte(v >> 8)
		}
	}
	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDecoded %s: %d %s samples -> %s\n", *channel, samples.Len(), width, *out)
}

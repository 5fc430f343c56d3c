package ffmpeg

import (
	"bufio"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// listenProgress opens a unix socket for ffmpeg's -progress output and feeds
// parsed completion fractions to fn. Progress is advisory: if the listener
// cannot be created the transcode proceeds without it and sock is "".
func (e *Engine) listenProgress(job Job, fn func(float64)) (sock string, stop func()) {
	sock = filepath.Join(e.dir, job.Input+".progress")
	l, err := net.Listen("unix", sock)
	if err != nil {
		return "", func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// ffmpeg emits key=value lines in blocks, each block closed by a
		// "progress=continue" or "progress=end" line.
		sc := bufio.NewScanner(conn)
		var block strings.Builder
		for sc.Scan() {
			line := sc.Text()
			block.WriteString(line)
			block.WriteByte('\n')
			if strings.HasPrefix(line, "progress=") {
				if frac, ok := parseProgress(block.String(), job.Frames); ok {
					fn(frac)
				}
				block.Reset()
			}
		}
	}()

	return sock, func() {
		_ = l.Close()
		<-done
	}
}

// parseProgress extracts a completion fraction from one -progress block.
// With an unknown total frame count only the terminal "progress=end" block
// yields a value.
func parseProgress(block string, frames int) (float64, bool) {
	frac := 0.0
	ok := false
	for _, line := range strings.Split(block, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "frame":
			if frames <= 0 {
				continue
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			frac = float64(n) / float64(frames)
			if frac > 1 {
				frac = 1
			}
			ok = true
		case "progress":
			if value == "end" {
				frac = 1
				ok = true
			}
		}
	}
	return frac, ok
}

// defaultProgress logs a human-readable percentage, throttled so long
// decodes do not flood the log.
func (e *Engine) defaultProgress(input string) func(float64) {
	throttle := &rate.Sometimes{First: 1, Interval: time.Second}
	return func(frac float64) {
		throttle.Do(func() {
			e.logger.Info("decode progress",
				"input", input,
				"percent", int(frac*100+0.5),
			)
		})
	}
}

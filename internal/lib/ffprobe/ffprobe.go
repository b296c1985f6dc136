package ffprobe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Probe measures media files with the ffprobe binary.
type Probe struct{}

func New() *Probe {
	return &Probe{}
}

// Duration returns the playable duration of file
// with microsecond resolution.
func (p *Probe) Duration(ctx context.Context, file string) (time.Duration, error) {
	const op = "ffprobe.Duration"

	out, err := getMeta(ctx, file, "format=duration")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	seconds, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: unexpected ffprobe output %q: %w", op, out, err)
	}

	return time.Duration(seconds * float64(time.Second)).Round(time.Microsecond), nil
}

// getMeta extracts metadata parameter
func getMeta(ctx context.Context, file string, par string) (string, error) {
	cmd := exec.CommandContext(
		ctx,
		"ffprobe",            //						call ffprobe
		"-loglevel", "error", //						set loglevel
		"-show_entries", par, // 						set parameter to write
		"-of", "default=noprint_wrappers=1:nokey=1", //	write only the result (without key)
		file, //										target file
	)

	stdout, err := cmd.Output()

	if err != nil {
		return "", err
	}

	return strings.Trim(string(stdout), "\n"), nil
}

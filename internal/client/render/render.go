package client

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/velmark/draftline/internal/lib/logger/sl"
	"github.com/velmark/draftline/internal/lib/utils/writer"
)

// Client wraps the external compositor binary. One render
// runs at a time, the caller serializes invocations.
type Client struct {
	log     *slog.Logger
	binPath string
	workDir string
	threads int
}

func New(
	log *slog.Logger,
	binPath string,
	workDir string,
	threads int,
) *Client {
	return &Client{
		log:     log,
		binPath: binPath,
		workDir: workDir,
		threads: threads,
	}
}

// Render composes the laid-out draft into outputPath.
// The draft content must already be fetched into the
// job directory by the caller.
func (c *Client) Render(ctx context.Context, draftID string, outputPath string) error {
	const op = "Client.Render"

	log := c.log.With(
		slog.String("op", op),
		slog.String("draftID", draftID),
	)

	draftFile := filepath.Join(c.workDir, draftID, "draft_content.json")

	cmd := exec.CommandContext(
		ctx,
		c.binPath,
		"--timeline", draftFile,
		"--threads", strconv.Itoa(c.threads),
		"--out", outputPath,
	)

	errorWriter := writer.New()
	cmd.Stderr = errorWriter

	log.Debug("setup render cmd", slog.String("cmd", cmd.String()))
	log.Info("start render cmd")

	if err := cmd.Run(); err != nil {
		log.Error(
			"failed to run render cmd",
			slog.String("stderr", errorWriter.String()),
			sl.Err(err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("render cmd finished")

	return nil
}

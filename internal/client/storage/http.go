package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/velmark/draftline/internal/lib/logger/sl"
)

// Client uploads rendered artifacts to the storage
// gateway and returns their public URLs.
type Client struct {
	log    *slog.Logger
	addr   string
	client *http.Client
}

func New(
	log *slog.Logger,
	addr string,
	timeout time.Duration,
) *Client {
	return &Client{
		log:  log,
		addr: addr,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload sends the file as multipart form data and
// returns the URL assigned by the gateway.
func (c *Client) Upload(ctx context.Context, filePath string) (string, error) {
	const op = "Client.Upload"

	log := c.log.With(
		slog.String("op", op),
		slog.String("file", filePath),
	)

	file, err := os.Open(filePath)
	if err != nil {
		log.Error("failed to open file", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/upload", pr)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("failed to send file", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error("gateway rejected upload", slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Error("failed to decode response", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("uploaded artifact", slog.String("url", body.URL))

	return body.URL, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/velmark/draftline/internal/lib/logger/sl"
)

// Client talks to the points billing service.
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

type deductRequest struct {
	Credential string `json:"credential"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
}

type deductResponse struct {
	Charged bool `json:"charged"`
}

// Deduct withdraws points from the account behind the
// credential. Returns false when the account has
// insufficient funds.
func (c *Client) Deduct(ctx context.Context, credential string, amount int64, reason string) (bool, error) {
	const op = "Client.Deduct"

	log := c.log.With(
		slog.String("op", op),
	)

	body, err := json.Marshal(deductRequest{
		Credential: credential,
		Amount:     amount,
		Reason:     reason,
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/deduct", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("failed to send deduct request", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusPaymentRequired:
		log.Warn("insufficient funds", slog.Int64("amount", amount))
		return false, nil
	default:
		return false, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var out deductResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return out.Charged, nil
}

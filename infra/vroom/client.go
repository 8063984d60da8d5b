// Package vroom implements the route optimizer contract against a VROOM
// HTTP endpoint.
package vroom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ecollecte/wastefleet/core/planner"
	"github.com/ecollecte/wastefleet/infra/logger"
)

// Config holds the optimizer endpoint settings.
type Config struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("vroom: url is required")
	}
	return nil
}

// Client talks to a VROOM solver over HTTP.
type Client struct {
	url  string
	http *http.Client
	log  logger.Logger
}

// New creates a Client from the config.
func New(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		url:  cfg.URL,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:  logger.New("vroom"),
	}, nil
}

// Optimize posts the problem to the solver and decodes the solution. A
// transport failure, a non-2xx status or a non-zero solution code all come
// back as errors.
func (c *Client) Optimize(ctx context.Context, req planner.OptimizerRequest) (planner.OptimizerSolution, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return planner.OptimizerSolution{}, fmt.Errorf("vroom: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return planner.OptimizerSolution{}, fmt.Errorf("vroom: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return planner.OptimizerSolution{}, fmt.Errorf("vroom: call solver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return planner.OptimizerSolution{}, fmt.Errorf("vroom: solver returned %d: %s", resp.StatusCode, snippet)
	}

	var sol planner.OptimizerSolution
	if err := json.NewDecoder(resp.Body).Decode(&sol); err != nil {
		return planner.OptimizerSolution{}, fmt.Errorf("vroom: decode solution: %w", err)
	}
	if sol.Code != 0 {
		return planner.OptimizerSolution{}, fmt.Errorf("vroom: solver code %d: %s", sol.Code, sol.Error)
	}

	c.log.Debugw("solved routing problem", map[string]any{
		"vehicles": len(req.Vehicles),
		"jobs":     len(req.Jobs),
		"routes":   len(sol.Routes),
		"took_ms":  time.Since(start).Milliseconds(),
	})
	return sol, nil
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spinrank/internal/bots"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

type RosterResponse struct {
	WeekKey string     `json:"week_key"`
	Bots    []bots.Bot `json:"bots"`
}

func (c *Client) Generate(ctx context.Context, weekKey string) (RosterResponse, error) {
	var out RosterResponse
	err := c.Do(ctx, http.MethodPost, "/v1/bots/generate", map[string]any{"week_key": weekKey}, &out)
	return out, err
}

type RetireResponse struct {
	WeekKey string `json:"week_key"`
	Retired int    `json:"retired"`
}

func (c *Client) Retire(ctx context.Context, weekKey string) (RetireResponse, error) {
	var out RetireResponse
	err := c.Do(ctx, http.MethodPost, "/v1/bots/retire", map[string]any{"week_key": weekKey}, &out)
	return out, err
}

func (c *Client) HardDelete(ctx context.Context) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	err := c.Do(ctx, http.MethodDelete, "/v1/bots?confirm=yes", nil, &out)
	return out.Deleted, err
}

func (c *Client) Bots(ctx context.Context, weekKey string) (RosterResponse, error) {
	var out RosterResponse
	err := c.Do(ctx, http.MethodGet, "/v1/bots?week="+url.QueryEscape(weekKey), nil, &out)
	return out, err
}

type RunRequest struct {
	Force      bool  `json:"force"`
	ForcedDay  *int  `json:"forced_day,omitempty"`
	ForcedRush *bool `json:"forced_rush,omitempty"`
}

func (c *Client) RunWindow(ctx context.Context, in RunRequest) (bots.RunReport, error) {
	var out bots.RunReport
	err := c.Do(ctx, http.MethodPost, "/v1/sim/run", in, &out)
	return out, err
}

func (c *Client) GetOverride(ctx context.Context) (bots.Override, error) {
	var out bots.Override
	err := c.Do(ctx, http.MethodGet, "/v1/sim/override", nil, &out)
	return out, err
}

type OverrideRequest struct {
	ForcedDay  *int  `json:"forced_day,omitempty"`
	ForcedRush *bool `json:"forced_rush,omitempty"`
}

func (c *Client) SetOverride(ctx context.Context, in OverrideRequest) error {
	return c.Do(ctx, http.MethodPut, "/v1/sim/override", in, nil)
}

func (c *Client) ClearOverride(ctx context.Context) error {
	return c.Do(ctx, http.MethodDelete, "/v1/sim/override", nil, nil)
}

func (c *Client) Pool(ctx context.Context) (bots.PoolStatus, error) {
	var out bots.PoolStatus
	err := c.Do(ctx, http.MethodGet, "/v1/pool", nil, &out)
	return out, err
}

func (c *Client) SeedPool(ctx context.Context, ids []int64) (bots.PoolStatus, error) {
	var out bots.PoolStatus
	err := c.Do(ctx, http.MethodPost, "/v1/pool/seed", map[string]any{"ids": ids}, &out)
	return out, err
}

func (c *Client) Analytics(ctx context.Context, weekKey string) (bots.WeekAnalytics, error) {
	var out bots.WeekAnalytics
	err := c.Do(ctx, http.MethodGet, "/v1/analytics?week="+url.QueryEscape(weekKey), nil, &out)
	return out, err
}

func (c *Client) PickWinner(ctx context.Context, prize, weekKey string) (bots.Ticket, error) {
	var out bots.Ticket
	path := "/v1/lottery/" + url.PathEscape(prize) + "/winner?week=" + url.QueryEscape(weekKey)
	err := c.Do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *Client) EnsureParticipation(ctx context.Context, prize, weekKey string) (bots.Ticket, error) {
	var out bots.Ticket
	path := "/v1/lottery/" + url.PathEscape(prize) + "/participation?week=" + url.QueryEscape(weekKey)
	err := c.Do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

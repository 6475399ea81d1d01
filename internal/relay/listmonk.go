// Package relay holds the thin typed clients for the external services
// this system forwards events into.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const listmonkService = "listmonk"

// sendAtFormat is the timestamp layout Listmonk accepts for send_at.
const sendAtFormat = time.RFC3339

// CampaignParams describes the campaign to create.
type CampaignParams struct {
	Name    string
	Subject string
	Body    string
	ListIDs []int
	// SendAt schedules the campaign; nil leaves the campaign in draft
	// for the service's default send behavior.
	SendAt *time.Time
}

// Listmonk is a minimal client for the Listmonk campaign API. It exposes
// only the two calls the relay needs.
type Listmonk struct {
	baseURL  string
	username string
	token    string
	http     *http.Client
}

// NewListmonk creates a Listmonk client. Credentials are sent as HTTP
// Basic auth on every request.
func NewListmonk(baseURL, username, token string, timeout time.Duration) *Listmonk {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Listmonk{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

type campaignRequest struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Lists       []int  `json:"lists"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
	SendAt      string `json:"send_at,omitempty"`
}

type campaignResponse struct {
	Data struct {
		ID int `json:"id"`
	} `json:"data"`
}

// CreateCampaign creates a regular HTML campaign and returns its id.
func (c *Listmonk) CreateCampaign(ctx context.Context, params CampaignParams) (int, error) {
	reqBody := campaignRequest{
		Name:        params.Name,
		Subject:     params.Subject,
		Lists:       params.ListIDs,
		Type:        "regular",
		ContentType: "html",
		Body:        params.Body,
	}
	if params.SendAt != nil {
		reqBody.SendAt = params.SendAt.Format(sendAtFormat)
	}

	var resp campaignResponse
	if err := c.do(ctx, http.MethodPost, "/api/campaigns", reqBody, &resp); err != nil {
		return 0, err
	}
	return resp.Data.ID, nil
}

// ScheduleCampaign moves a created campaign into the scheduled state so
// that its send_at takes effect.
func (c *Listmonk) ScheduleCampaign(ctx context.Context, id int) error {
	path := fmt.Sprintf("/api/campaigns/%d/status", id)
	return c.do(ctx, http.MethodPut, path, map[string]string{"status": "scheduled"}, nil)
}

func (c *Listmonk) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("listmonk: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("listmonk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnavailableError{Service: listmonkService, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ServiceError{
			Service:    listmonkService,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("listmonk: decode response: %w", err)
		}
	}
	return nil
}

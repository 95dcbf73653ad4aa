package openfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to the aggregator's REST API
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateConnectToken requests a widget token
func (c *HTTPClient) CreateConnectToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/connect_token", nil)
	if err != nil {
		return "", fmt.Errorf("building connect token request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting connect token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("connect token request returned %s", resp.Status)
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding connect token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("connect token response missing accessToken")
	}
	return body.AccessToken, nil
}

// FetchBills lists bills visible through an access token
func (c *HTTPClient) FetchBills(ctx context.Context, accessToken string) ([]Bill, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bills", nil)
	if err != nil {
		return nil, fmt.Errorf("building bills request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting bills: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bills request returned %s", resp.Status)
	}

	var body struct {
		Results []Bill `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding bills response: %w", err)
	}
	return body.Results, nil
}

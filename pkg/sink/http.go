package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// DatasetPlaceholder in an HTTPSink URL is replaced by "site_<id>"
const DatasetPlaceholder = "{dataset}"

// HTTPConfig configures NewHTTPSink
type HTTPConfig struct {
	// URL of the insert endpoint, may contain DatasetPlaceholder
	URL string

	// OAuth2 client credentials, disabled when TokenURL is empty
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	Timeout time.Duration
}

type insertRow struct {
	JSON Record `json:"json"`
}

type insertRequest struct {
	Rows []insertRow `json:"rows"`
}

// HTTPSink posts batches as {"rows":[{"json":{...}}]} to a warehouse endpoint
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink. When cfg.TokenURL is set requests carry a bearer
// token obtained with the client-credentials grant and refreshed on expiry.
func NewHTTPSink(ctx context.Context, cfg HTTPConfig) *HTTPSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(ctx)
		client.Timeout = timeout
	}
	return &HTTPSink{url: cfg.URL, client: client}
}

// Append implements Sink
func (s *HTTPSink) Append(ctx context.Context, siteID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	body := insertRequest{Rows: make([]insertRow, len(records))}
	for i, r := range records {
		body.Rows[i] = insertRow{JSON: r}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}

	url := strings.ReplaceAll(s.url, DatasetPlaceholder, "site_"+siteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build insert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("insert rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

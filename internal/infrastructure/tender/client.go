package tender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openprocurement/auction-worker/internal/config"
	"github.com/openprocurement/auction-worker/internal/domain"
)

// APIClient talks to the tendering API: it pulls auction data for one
// tender (optionally a single lot) and pushes back the final results.
type APIClient struct {
	client     *http.Client
	baseURL    string
	apiVersion string
	token      string
	resource   string
	tenderID   string
	lotID      string
}

type ClientOption func(*APIClient)

func WithAPIVersion(version string) ClientOption {
	return func(c *APIClient) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

func NewAPIClient(cfg *config.WorkerConfig, tenderID, lotID string, opts ...ClientOption) *APIClient {
	c := &APIClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    cfg.ResourceAPIServer,
		apiVersion: cfg.ResourceAPIVersion,
		token:      cfg.ResourceAPIToken,
		resource:   cfg.ResourceName,
		tenderID:   tenderID,
		lotID:      lotID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *APIClient) resourceURL() string {
	return fmt.Sprintf("%s/api/%s/%s/%s/auction", c.baseURL, c.apiVersion, c.resource, c.tenderID)
}

func (c *APIClient) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/%s/health", c.baseURL, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tender API health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tender API returned status: %d", resp.StatusCode)
	}
	return nil
}

type auctionDataEnvelope struct {
	Data domain.TenderData `json:"data"`
}

func (c *APIClient) GetTenderData(ctx context.Context, requestID string) (*domain.TenderData, error) {
	url := c.resourceURL()
	if c.lotID != "" {
		url = fmt.Sprintf("%s/%s", url, c.lotID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrAuctionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tender API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope auctionDataEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse auction data: %w", err)
	}
	return &envelope.Data, nil
}

type resultsEnvelope struct {
	Data domain.ResultsSubmission `json:"data"`
}

func (c *APIClient) PublishResults(ctx context.Context, requestID string, results *domain.ResultsSubmission) error {
	payload, err := json.Marshal(resultsEnvelope{Data: *results})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resourceURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tender API returned status: %d", resp.StatusCode)
	}
	return nil
}

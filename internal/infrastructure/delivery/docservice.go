package delivery

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/openprocurement/auction-worker/internal/config"
)

// DocServiceAuditSink uploads rendered audit artifacts to an external
// document service over HTTP instead of writing them to object storage.
type DocServiceAuditSink struct {
	client   *http.Client
	url      string
	endpoint string
}

func NewDocServiceAuditSink(cfg *config.WorkerConfig) *DocServiceAuditSink {
	return &DocServiceAuditSink{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		url:      cfg.DocumentService.URL,
		endpoint: cfg.DocumentService.Endpoint,
	}
}

func (s *DocServiceAuditSink) Upload(ctx context.Context, auctionID string, artifact []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fmt.Sprintf("audit_%s.yaml", auctionID))
	if err != nil {
		return err
	}
	if _, err := part.Write(artifact); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/upload", &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload audit artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("document service returned status: %d", resp.StatusCode)
	}
	return nil
}

func (s *DocServiceAuditSink) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("document service returned status: %d", resp.StatusCode)
	}
	return nil
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"scanbay/internal/api"
	"scanbay/internal/config"
)

// apiClient talks to the daemon's HTTP API.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(cfg *config.Config) *apiClient {
	return &apiClient{
		baseURL:    "http://" + strings.TrimSpace(cfg.Paths.APIBind),
		token:      cfg.Paths.APIToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *apiClient) submit(barcodes, locale, model string, photoPaths []string) (*api.JobView, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range map[string]string{
		"barcodes": barcodes,
		"locale":   locale,
		"model":    model,
	} {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("encode form field %s: %w", key, err)
		}
	}
	for _, path := range photoPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read photo %s: %w", path, err)
		}
		part, err := writer.CreateFormFile("photos", filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("encode photo %s: %w", path, err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("encode photo %s: %w", path, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish upload form: %w", err)
	}

	var payload api.JobResponse
	err := c.do(http.MethodPost, "/api/jobs", writer.FormDataContentType(), &buf, &payload)
	if err != nil {
		return nil, err
	}
	return &payload.Job, nil
}

func (c *apiClient) getJob(id string) (*api.JobView, error) {
	var payload api.JobResponse
	if err := c.do(http.MethodGet, "/api/jobs/"+id, "", nil, &payload); err != nil {
		return nil, err
	}
	return &payload.Job, nil
}

func (c *apiClient) listJobs(statuses []string) ([]api.JobView, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		path += "?status=" + strings.Join(statuses, "&status=")
	}
	var payload api.JobListResponse
	if err := c.do(http.MethodGet, path, "", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

func (c *apiClient) retryJob(id string) (int64, error) {
	var payload api.RetryResponse
	if err := c.do(http.MethodPost, "/api/jobs/"+id+"/retry", "", nil, &payload); err != nil {
		return 0, err
	}
	return payload.Retried, nil
}

func (c *apiClient) retryAll() (int64, error) {
	var payload api.RetryResponse
	if err := c.do(http.MethodPost, "/api/jobs/retry", "", nil, &payload); err != nil {
		return 0, err
	}
	return payload.Retried, nil
}

func (c *apiClient) health() (*api.HealthResponse, error) {
	var payload api.HealthResponse
	if err := c.do(http.MethodGet, "/api/health", "", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *apiClient) do(method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapDialError(err, c.baseURL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon rejected request: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error, baseURL string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start it with `scanbay daemon run`", baseURL)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

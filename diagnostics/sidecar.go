package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PlottingServiceConfig contains configuration for the plotting sidecar
type PlottingServiceConfig struct {
	BaseURL       string        `json:"base_url"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// DefaultPlottingServiceConfig returns default configuration for the plotting service
func DefaultPlottingServiceConfig() PlottingServiceConfig {
	return PlottingServiceConfig{
		BaseURL:       "http://localhost:8080",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}
}

// PlottingService publishes plot data to a sidecar plotting application
// over HTTP
type PlottingService struct {
	config     PlottingServiceConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// PlottingResponse represents the response from the plotting service
type PlottingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PlotURL   string `json:"plot_url,omitempty"`
	ViewURL   string `json:"view_url,omitempty"`
	PlotID    string `json:"plot_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// BatchPlottingResponse represents the response from the batch plotting endpoint
type BatchPlottingResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	BatchID      string            `json:"batch_id,omitempty"`
	Results      []BatchPlotResult `json:"results,omitempty"`
	DashboardURL string            `json:"dashboard_url,omitempty"`
	Summary      BatchSummary      `json:"summary,omitempty"`
}

// BatchPlotResult represents a single plot result within a batch response
type BatchPlotResult struct {
	Success   bool   `json:"success"`
	PlotID    string `json:"plot_id,omitempty"`
	PlotURL   string `json:"plot_url,omitempty"`
	ViewURL   string `json:"view_url,omitempty"`
	PlotType  string `json:"plot_type,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// BatchSummary represents the summary of a batch operation
type BatchSummary struct {
	TotalPlots int `json:"total_plots"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type batchRequest struct {
	Plots []PlotData `json:"plots"`
	Batch bool       `json:"batch"`
}

// NewPlottingService creates a new plotting service client
func NewPlottingService(config PlottingServiceConfig, logger *zap.Logger) *PlottingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlottingService{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.Named("sidecar"),
	}
}

// CheckHealth checks if the plotting service is available
func (ps *PlottingService) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ps.config.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// SendPlotData sends one plot to the sidecar
func (ps *PlottingService) SendPlotData(ctx context.Context, pd PlotData) (*PlottingResponse, error) {
	var out PlottingResponse
	status, err := ps.post(ctx, "/api/plot", pd, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return &out, fmt.Errorf("HTTP request failed with status %d: %s", status, out.Message)
	}
	return &out, nil
}

// BatchSendPlots sends multiple plots in a single request
func (ps *PlottingService) BatchSendPlots(ctx context.Context, plots []PlotData) (*BatchPlottingResponse, error) {
	var out BatchPlottingResponse
	status, err := ps.post(ctx, "/api/batch-plot", batchRequest{Plots: plots, Batch: true}, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return &out, fmt.Errorf("batch HTTP request failed with status %d: %s", status, out.Message)
	}
	return &out, nil
}

// Publish sends every non-empty plot of c in one batch, retrying failed
// attempts, and returns the sidecar's answer
func (ps *PlottingService) Publish(ctx context.Context, c *Collector) (*BatchPlottingResponse, error) {
	var plots []PlotData
	for _, pd := range c.GenerateAll() {
		if hasData(pd) {
			plots = append(plots, pd)
		}
	}
	if len(plots) == 0 {
		return nil, ErrNoData
	}

	attempts := ps.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := ps.BatchSendPlots(ctx, plots)
		if err == nil {
			ps.logger.Info("plots published",
				zap.String("batch_id", resp.BatchID),
				zap.Int("successful", resp.Summary.Successful),
				zap.Int("failed", resp.Summary.Failed),
				zap.String("dashboard", ps.dashboardURL(resp)))
			return resp, nil
		}
		lastErr = err
		ps.logger.Warn("publishing plots failed", zap.Int("attempt", attempt+1), zap.Error(err))

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(ps.config.RetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to send plot data after %d attempts: %w", attempts, lastErr)
}

func (ps *PlottingService) dashboardURL(resp *BatchPlottingResponse) string {
	if resp.DashboardURL == "" {
		return ""
	}
	return ps.config.BaseURL + resp.DashboardURL
}

// post sends body as JSON and decodes the JSON answer into out, whatever
// the status
func (ps *PlottingService) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal plot data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ps.config.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "go-datasource")

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return resp.StatusCode, nil
}

func hasData(pd PlotData) bool {
	for _, s := range pd.Series {
		if len(s.Data) > 0 {
			return true
		}
	}
	return false
}

package fetch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/infrastructure/config"
	"github.com/driftwatch/driftwatch/internal/infrastructure/governor"
	"github.com/driftwatch/driftwatch/internal/infrastructure/logging"
	"github.com/driftwatch/driftwatch/internal/infrastructure/monitoring"
)

// Client is a governed HTTP client for upstream market data sources.
// Every request acquires admission from the governor first and reports
// the outcome afterwards. Client-level retries stay disabled; admission
// happens per attempt and callers decide whether to try again.
type Client struct {
	resty    *resty.Client
	governor *governor.Governor
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// New creates a governed client. The transport comes from retryablehttp's
// pooled default so connections are reused across sources.
func New(cfg config.FetchConfig, gov *governor.Governor, logger *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent)
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	return &Client{
		resty:    restyClient,
		governor: gov,
		logger:   logger,
	}
}

// WithMetrics sets the metrics collector
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// Do executes one governed request against the source. The call blocks in
// the governor until the source admits it and returns governor.ErrUnavailable
// without sending anything when the source's breaker is open.
func (c *Client) Do(ctx context.Context, source, method, url string) (*resty.Response, error) {
	if err := c.governor.Acquire(source); err != nil {
		c.logger.Warn("request rejected",
			zap.String("source", source),
			zap.String("url", url),
		)
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	start := time.Now()
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString()).
		Execute(method, url)

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	c.report(source, status, err)
	if c.metrics != nil {
		c.metrics.RecordFetch(source, statusLabel(status, err), time.Since(start))
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return resp, nil
}

// Get executes a governed GET request.
func (c *Client) Get(ctx context.Context, source, url string) (*resty.Response, error) {
	return c.Do(ctx, source, "GET", url)
}

// GetJSON executes a governed GET request and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, source, url string, out interface{}) error {
	resp, err := c.Get(ctx, source, url)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("%s: unexpected status %d", source, resp.StatusCode())
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", source, err)
	}
	return nil
}

// report classifies the outcome. Transport errors, server errors, and
// explicit throttling count against the source; everything else, client
// errors included, counts as the source answering fine.
func (c *Client) report(source string, status int, err error) {
	switch {
	case err != nil:
		c.governor.ReportFailure(source, 0)
	case status >= 500 || status == 429:
		c.governor.ReportFailure(source, status)
	default:
		c.governor.ReportSuccess(source)
	}
}

func statusLabel(status int, err error) string {
	if err != nil {
		return "error"
	}
	return strconv.Itoa(status)
}

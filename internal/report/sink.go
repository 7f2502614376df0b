package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/models"
)

const uploadTimeout = 60 * time.Second

// SinkConfig configures where rendered reports are shipped. With an empty
// BaseURL and URL the inline sink is used instead.
type SinkConfig struct {
	// BaseURL uploads each job to <BaseURL>/<jobID>.json.
	BaseURL string
	// URL is a fixed (e.g. presigned) upload target, used when BaseURL is
	// empty.
	URL     string
	Method  string
	Headers map[string]string
}

// NewSink picks the sink for the given config: an HTTPSink when an upload
// target is configured, otherwise the inline data-URI fallback.
func NewSink(cfg SinkConfig, client *http.Client, log *logrus.Logger) interface {
	Upload(ctx context.Context, job models.ReportJob, payload []byte) (string, error)
} {
	if cfg.BaseURL == "" && cfg.URL == "" {
		return &InlineSink{}
	}
	return NewHTTPSink(cfg, client, log)
}

// InlineSink embeds the payload into the job's output location as a data
// URI. Used when no upload target is configured, so small deployments work
// with zero object storage.
type InlineSink struct{}

// Upload implements worker.Sink.
func (s *InlineSink) Upload(_ context.Context, _ models.ReportJob, payload []byte) (string, error) {
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(payload), nil
}

// HTTPSink PUTs (or POSTs) the payload to an upload target.
type HTTPSink struct {
	cfg    SinkConfig
	client *http.Client
	log    *logrus.Logger
}

// NewHTTPSink creates an HTTPSink. A nil client gets a default with a
// request timeout.
func NewHTTPSink(cfg SinkConfig, client *http.Client, log *logrus.Logger) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: uploadTimeout}
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPut
	}
	return &HTTPSink{cfg: cfg, client: client, log: log}
}

// Upload implements worker.Sink. Transport failures are retryable; a
// non-2xx response fails the attempt.
func (s *HTTPSink) Upload(ctx context.Context, job models.ReportJob, payload []byte) (string, error) {
	target := s.cfg.URL
	if s.cfg.BaseURL != "" {
		target = strings.TrimRight(s.cfg.BaseURL, "/") + "/" + job.ID + ".json"
	}

	req, err := http.NewRequestWithContext(ctx, s.cfg.Method, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("report upload: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload failed %d", resp.StatusCode)
	}

	s.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"location": target,
		"bytes":    len(payload),
	}).Debug("report uploaded")

	return target, nil
}

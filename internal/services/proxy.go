package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
)

const DefaultProxyUpstream = "https://ffp.tactiq.io"

var hopHeaders = map[string]struct{}{
	"host":           {},
	"connection":     {},
	"content-length": {},
}

// ProxyResponse is the upstream answer re-encoded as JSON. A body that is not
// JSON is returned as a JSON string.
type ProxyResponse struct {
	Status int
	Body   json.RawMessage
}

type ProxyService interface {
	Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*ProxyResponse, error)
}

type proxyService struct {
	log     *logger.Logger
	client  *http.Client
	baseURL string
}

func NewProxyService(log *logger.Logger, baseURL string, client *http.Client) ProxyService {
	serviceLog := log.With("service", "ProxyService")
	if baseURL == "" {
		baseURL = DefaultProxyUpstream
	}
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
		}
	}
	return &proxyService{
		log:     serviceLog,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (ps *proxyService) Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*ProxyResponse, error) {
	targetURL := ps.baseURL + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		targetURL += "?" + rawQuery
	}
	if method == http.MethodGet || method == http.MethodDelete {
		body = nil
	}
	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		ps.log.Warn("failed to build proxy request", "error", err)
		return nil, err
	}
	for name, values := range header {
		if _, skip := hopHeaders[strings.ToLower(name)]; skip {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	resp, err := ps.client.Do(req)
	if err != nil {
		ps.log.Warn("failed to call proxy upstream", "url", targetURL, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		ps.log.Warn("failed to read proxy upstream body", "error", err)
		return nil, err
	}
	out := &ProxyResponse{Status: resp.StatusCode}
	if json.Valid(raw) && len(strings.TrimSpace(string(raw))) > 0 {
		out.Body = raw
	} else {
		encoded, err := json.Marshal(string(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to encode upstream body: %w", err)
		}
		out.Body = encoded
	}
	ps.log.Debug("proxy call done", "method", method, "url", targetURL, "status", resp.StatusCode)
	return out, nil
}

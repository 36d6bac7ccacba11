// SPDX-License-Identifier: MIT

// Package youtube searches videos through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/saytube/internal/video"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// Config configures the searcher.
type Config struct {
	APIKey string
	// QPS paces search.list calls; every call costs 100 quota units.
	QPS float64

	// Endpoint and HTTPClient override the API base URL and transport.
	// A custom HTTPClient bypasses APIKey and must authenticate itself.
	Endpoint   string
	HTTPClient *http.Client
}

// Searcher implements video.Searcher.
type Searcher struct {
	svc     *yt.Service
	limiter *rate.Limiter
}

// New creates the API client.
func New(ctx context.Context, cfg Config) (*Searcher, error) {
	if cfg.APIKey == "" && cfg.HTTPClient == nil {
		return nil, errors.New("youtube: API key is required")
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	limit := rate.Inf
	if cfg.QPS > 0 {
		limit = rate.Limit(cfg.QPS)
	}
	return &Searcher{svc: svc, limiter: rate.NewLimiter(limit, 1)}, nil
}

// Search returns the id of the first video matching query.
func (s *Searcher) Search(ctx context.Context, query string) (video.ID, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("youtube: pacing: %w", err)
	}

	resp, err := s.svc.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(1).
		Fields("items(id/videoId)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("youtube: search.list: %w", err)
	}

	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			return video.ID(item.Id.VideoId), nil
		}
	}
	return "", video.ErrNoResults
}

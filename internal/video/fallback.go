// SPDX-License-Identifier: MIT

package video

import (
	"context"
	"errors"

	"github.com/ManuGH/saytube/internal/resilience"
	"github.com/rs/zerolog"
)

// BreakerSearcher sends queries to primary through a circuit breaker. While
// the breaker is open, queries go to fallback instead. A failed primary call
// is returned as is; it is not repeated against the fallback.
type BreakerSearcher struct {
	primary  Searcher
	fallback Searcher
	breaker  *resilience.CircuitBreaker
	logger   zerolog.Logger
}

// NewBreakerSearcher wraps primary. "No results" answers never trip the
// breaker.
func NewBreakerSearcher(primary, fallback Searcher, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *BreakerSearcher {
	return &BreakerSearcher{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

// SearchFailureCounts is the breaker failure filter for searchers.
func SearchFailureCounts(err error) bool {
	return !errors.Is(err, ErrNoResults) && !errors.Is(err, context.Canceled)
}

// Search implements Searcher.
func (s *BreakerSearcher) Search(ctx context.Context, query string) (ID, error) {
	var id ID
	err := s.breaker.Execute(func() error {
		var err error
		id, err = s.primary.Search(ctx, query)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) && s.fallback != nil {
		s.logger.Debug().Str("event", "video.search_fallback").Msg("primary searcher unavailable, using fallback")
		return s.fallback.Search(ctx, query)
	}
	return id, err
}

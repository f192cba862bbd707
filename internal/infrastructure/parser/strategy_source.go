package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsPoster/internal/config"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
	"NewsPoster/internal/scanner"
)

// StrategySource implements NewsSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	lookback time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.NewsSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, lookback time.Duration, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		lookback: lookback,
		logger:   log,
		now:      time.Now,
	}
}

// FetchNewsItems iterates over configured sites and executes their scanners.
// A failing site does not stop the others; whatever was collected is
// returned together with an error wrapping domain.ErrIngestionFailure.
func (s *StrategySource) FetchNewsItems(ctx context.Context) ([]domain.NewsItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: scanner registry is not configured", domain.ErrIngestionFailure)
	}

	var since time.Time
	if s.lookback > 0 {
		since = s.now().Add(-s.lookback)
	}
	s.debug("fetch news", "sites", len(s.sites), "since", since)

	var (
		aggregated []domain.NewsItem
		errs       []error
	)
	for _, site := range s.sites {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		s.debug("process site", "site", site.Name, "scanner", site.Scanner, "categories", len(site.Categories))
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			errs = append(errs, fmt.Errorf("site %s: %w", site.Name, err))
			continue
		}

		req := scanner.Request{
			Since:      since,
			SiteName:   site.Name,
			Options:    site.Options,
			Categories: toScannerCategories(site.Categories),
			MaxItems:   site.MaxItems,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan site %s: %w", site.Name, err))
			if s.logger != nil {
				s.logger.Warn("site scan failed", "site", site.Name, "partial", len(results), "error", err)
			}
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = site.Name
			}
		}
		s.debug("site produced news", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	aggregated = domain.DedupNews(aggregated)
	s.debug("strategy source done", "total_items", len(aggregated), "failed_sites", len(errs))

	if len(errs) > 0 {
		return aggregated, fmt.Errorf("%w: %w", domain.ErrIngestionFailure, errors.Join(errs...))
	}
	return aggregated, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"AutoNews/internal/config"
	"AutoNews/internal/domain"
	"AutoNews/internal/ports"
	"AutoNews/internal/scanner"
)

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	if log == nil {
		log = slog.Default()
	}
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchCandidates sweeps every configured site. A failing site is logged and
// skipped; the sweep fails only when no site could be scanned. Items missing
// a title, lead, image or link are dropped.
func (s *StrategySource) FetchCandidates(ctx context.Context) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.logger.Debug("fetch candidates", "sites", len(s.sites))

	var (
		aggregated []domain.Candidate
		siteErrs   []error
	)
	for _, site := range s.sites {
		items, err := s.scanSite(ctx, site)
		if err != nil {
			if ctx.Err() != nil {
				return aggregated, ctx.Err()
			}
			s.logger.Error("site scan failed", "site", site.Name, "error", err)
			siteErrs = append(siteErrs, fmt.Errorf("site %s: %w", site.Name, err))
			continue
		}

		accepted := 0
		for _, item := range items {
			source := item.Source
			if source == "" {
				source = site.Name
			}
			c, err := domain.NewCandidate(item.Title, item.Lead, item.ImageURL, item.Link, source)
			if err != nil {
				s.logger.Warn("candidate dropped", "site", site.Name, "link", item.Link, "error", err)
				continue
			}
			aggregated = append(aggregated, c)
			accepted++
		}
		s.logger.Info("site scanned", "site", site.Name, "items", len(items), "candidates", accepted)
	}

	if len(s.sites) > 0 && len(siteErrs) == len(s.sites) {
		return nil, errors.Join(siteErrs...)
	}

	s.logger.Debug("strategy source done", "total_candidates", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) scanSite(ctx context.Context, site config.SiteConfig) ([]scanner.Item, error) {
	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		return nil, err
	}
	return strategy.Scan(ctx, toRequest(site))
}

func toRequest(site config.SiteConfig) scanner.Request {
	categories := make([]scanner.Category, 0, len(site.Categories))
	for _, cat := range site.Categories {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}

	return scanner.Request{
		SiteName:   site.Name,
		Categories: categories,
		Options:    site.Options,
		Rules: scanner.Rules{
			LinkSelector:      site.Selectors.Link,
			LinkPattern:       site.Selectors.LinkPattern,
			TitleSelector:     site.Selectors.Title,
			LeadSelector:      site.Selectors.Lead,
			ImageSelector:     site.Selectors.Image,
			LinkLimit:         site.LinkLimit,
			MinLeadLength:     site.MinLeadLength,
			MaxLeadLength:     site.MaxLeadLength,
			SkipPhrases:       site.SkipPhrases,
			RequestsPerSecond: site.RequestsPerSecond,
		},
	}
}

package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"AutoNews/internal/scanner"
)

const (
	defaultLinkLimit     = 5
	defaultMinLeadLength = 30
	defaultTitleSelector = "h1"
	defaultLeadSelector  = "p"
	defaultImageSelector = "img"
	userAgent            = "Mozilla/5.0 (compatible; AutoNews/1.0)"
)

// HTMLScanner reads a site's listing pages, follows article links and
// extracts title, lead paragraph and preview image with CSS selectors.
type HTMLScanner struct {
	client *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTMLScanner wires an HTTP client.
func NewHTMLScanner(client *http.Client, logger *slog.Logger) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLScanner{client: client, logger: logger, limiters: map[string]*rate.Limiter{}}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan collects up to LinkLimit articles per listing page. A listing that
// cannot be fetched fails the scan; a single bad article is skipped.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]scanner.Item, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	rules := withDefaults(req.Rules)
	limiter := h.limiter(req.SiteName, rules.RequestsPerSecond)

	var pattern *regexp.Regexp
	if rules.LinkPattern != "" {
		p, err := regexp.Compile(rules.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("site %s: link pattern: %w", req.SiteName, err)
		}
		pattern = p
	}

	var items []scanner.Item
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		listing, err := h.fetchDocument(ctx, limiter, cat.URL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat.Name, err)
		}

		links := extractLinks(listing, cat.URL, rules.LinkSelector, pattern, rules.LinkLimit)
		h.logger.Debug("listing scanned", "site", req.SiteName, "category", cat.Name, "links", len(links))

		for _, link := range links {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}

			doc, err := h.fetchDocument(ctx, limiter, link)
			if err != nil {
				if ctx.Err() != nil {
					return items, ctx.Err()
				}
				h.logger.Warn("article fetch failed", "site", req.SiteName, "link", link, "error", err)
				continue
			}

			item, reason := extractArticle(doc, link, rules)
			if reason != "" {
				h.logger.Info("article skipped", "site", req.SiteName, "link", link, "reason", reason)
				continue
			}
			item.Source = req.SiteName
			items = append(items, item)
		}
	}

	return items, nil
}

func (h *HTMLScanner) limiter(site string, rps float64) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[site]; ok {
		return l
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	l := rate.NewLimiter(limit, 1)
	h.limiters[site] = l
	return l
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, limiter *rate.Limiter, pageURL string) (*goquery.Document, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractLinks(doc *goquery.Document, pageURL, selector string, pattern *regexp.Regexp, limit int) []string {
	base, _ := url.Parse(pageURL)

	var links []string
	seen := map[string]struct{}{}
	doc.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		if pattern != nil && !pattern.MatchString(href) {
			return true
		}

		abs := resolve(base, href)
		if abs == "" {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
		return len(links) < limit
	})
	return links
}

// extractArticle returns the item or a non-empty reason it was rejected.
func extractArticle(doc *goquery.Document, link string, rules scanner.Rules) (scanner.Item, string) {
	title := collapse(doc.Find(rules.TitleSelector).First().Text())
	if title == "" {
		return scanner.Item{}, "no title"
	}
	if phrase := containsAny(title, rules.SkipPhrases); phrase != "" {
		return scanner.Item{}, fmt.Sprintf("title contains %q", phrase)
	}

	var lead string
	doc.Find(rules.LeadSelector).EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := collapse(p.Text())
		n := utf8.RuneCountInString(text)
		if n <= rules.MinLeadLength {
			return true
		}
		if rules.MaxLeadLength > 0 && n >= rules.MaxLeadLength {
			return true
		}
		if containsAny(text, rules.SkipPhrases) != "" {
			return true
		}
		lead = text
		return false
	})
	if lead == "" {
		return scanner.Item{}, "no lead paragraph"
	}

	base, _ := url.Parse(link)
	image, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	if strings.TrimSpace(image) == "" {
		image, _ = doc.Find(rules.ImageSelector).First().Attr("src")
	}

	return scanner.Item{
		Title:    title,
		Lead:     lead,
		ImageURL: resolve(base, strings.TrimSpace(image)),
		Link:     link,
	}, ""
}

func withDefaults(r scanner.Rules) scanner.Rules {
	if r.LinkSelector == "" {
		r.LinkSelector = "a[href]"
	}
	if r.TitleSelector == "" {
		r.TitleSelector = defaultTitleSelector
	}
	if r.LeadSelector == "" {
		r.LeadSelector = defaultLeadSelector
	}
	if r.ImageSelector == "" {
		r.ImageSelector = defaultImageSelector
	}
	if r.LinkLimit <= 0 {
		r.LinkLimit = defaultLinkLimit
	}
	if r.MinLeadLength <= 0 {
		r.MinLeadLength = defaultMinLeadLength
	}
	return r
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(text string, phrases []string) string {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

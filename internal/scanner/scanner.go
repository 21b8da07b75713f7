package scanner

import (
	"context"
	"fmt"
)

// Category describes a listing page provided by config.
type Category struct {
	Name string
	URL  string
}

// Rules tell a scanner how to pull a candidate out of a site's pages.
type Rules struct {
	LinkSelector  string
	LinkPattern   string
	TitleSelector string
	LeadSelector  string
	ImageSelector string

	LinkLimit     int
	MinLeadLength int
	MaxLeadLength int
	SkipPhrases   []string

	RequestsPerSecond float64
}

// Request carries all parameters required to execute a scan.
type Request struct {
	SiteName   string
	Categories []Category
	Rules      Rules
	Options    map[string]string
}

// Item is an article as scraped, before validation.
type Item struct {
	Title    string
	Lead     string
	ImageURL string
	Link     string
	Source   string
}

// Scanner captures a single strategy implementation.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]Item, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

package domain

import (
	"crypto/rand"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	apperrors "AutoNews/internal/errors"
)

// MaxLeadRunes caps the lead paragraph carried by a candidate.
const MaxLeadRunes = 500

// Candidate is a freshly scraped item awaiting the duplicate check.
type Candidate struct {
	Title    string `json:"title"`
	Lead     string `json:"lead"`
	ImageURL string `json:"image_url"`
	Link     string `json:"link"`
	Source   string `json:"source"`
}

// NewCandidate trims and validates raw scraper output.
// Title, lead, link and an absolute http(s) image URL are required.
func NewCandidate(title, lead, imageURL, link, source string) (Candidate, error) {
	c := Candidate{
		Title:    strings.TrimSpace(title),
		Lead:     truncateRunes(strings.TrimSpace(lead), MaxLeadRunes),
		ImageURL: strings.TrimSpace(imageURL),
		Link:     strings.TrimSpace(link),
		Source:   strings.TrimSpace(source),
	}
	c.Lead = strings.TrimSpace(c.Lead)

	var missing []string
	if c.Title == "" {
		missing = append(missing, "title")
	}
	if c.Lead == "" {
		missing = append(missing, "lead")
	}
	if !isHTTPURL(c.ImageURL) {
		missing = append(missing, "image")
	}
	if c.Link == "" {
		missing = append(missing, "link")
	}
	if len(missing) > 0 {
		return Candidate{}, apperrors.NewValidation(missing)
	}
	return c, nil
}

// ComparisonText is the text embedded, reranked and stored for similarity checks.
func (c Candidate) ComparisonText() string {
	return ComparisonText(c.Title, c.Lead)
}

// ComparisonText joins title and lead and lower-cases the result.
func ComparisonText(title, lead string) string {
	return strings.ToLower(strings.TrimSpace(title) + " " + strings.TrimSpace(lead))
}

// CorpusEntry is an accepted item. Embedding holds the raw provider vector.
type CorpusEntry struct {
	Link      string    `json:"link"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasEmbedding reports whether the entry can take part in similarity search.
func (e CorpusEntry) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// QueuedPost is a novel candidate waiting for delivery.
type QueuedPost struct {
	ID         string    `json:"id"`
	Candidate  Candidate `json:"candidate"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewQueuedPost assigns a sortable identifier to an accepted candidate.
func NewQueuedPost(c Candidate, embedding []float32, now time.Time) QueuedPost {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return QueuedPost{
		ID:         ulid.MustNew(ulid.Timestamp(now), entropy).String(),
		Candidate:  c,
		Embedding:  embedding,
		EnqueuedAt: now,
	}
}

// Verdict is the outcome of the duplicate cascade.
type Verdict int

const (
	NotDuplicate Verdict = iota
	Duplicate
)

func (v Verdict) String() string {
	if v == Duplicate {
		return "duplicate"
	}
	return "not-duplicate"
}

// Stage names the cascade step that produced a verdict.
type Stage string

const (
	StageNone   Stage = ""
	StageLink   Stage = "link"
	StageVector Stage = "vector"
	StageRerank Stage = "rerank"
	StageJudge  Stage = "judge"
)

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

package publish

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"

	"AutoNews/internal/ports"
)

// AlertDeduplicator remembers the hash of every alert body seen in this process.
type AlertDeduplicator struct {
	mu   sync.Mutex
	seen map[[sha256.Size]byte]struct{}
}

// NewAlertDeduplicator returns an empty deduplicator.
func NewAlertDeduplicator() *AlertDeduplicator {
	return &AlertDeduplicator{seen: map[[sha256.Size]byte]struct{}{}}
}

// ShouldSend is true only the first time text is seen.
func (d *AlertDeduplicator) ShouldSend(text string) bool {
	sum := sha256.Sum256([]byte(text))

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[sum]; ok {
		return false
	}
	d.seen[sum] = struct{}{}
	return true
}

// DedupAlerter drops repeated alerts before they reach the operator channel.
type DedupAlerter struct {
	next   ports.Alerter
	dedup  *AlertDeduplicator
	logger *slog.Logger
}

var _ ports.Alerter = (*DedupAlerter)(nil)

// NewDedupAlerter wraps next with content-hash suppression.
func NewDedupAlerter(next ports.Alerter, dedup *AlertDeduplicator, logger *slog.Logger) *DedupAlerter {
	if dedup == nil {
		dedup = NewAlertDeduplicator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupAlerter{next: next, dedup: dedup, logger: logger}
}

// Alert forwards text unless an identical alert was already sent.
func (a *DedupAlerter) Alert(ctx context.Context, text, imageURL string) error {
	if !a.dedup.ShouldSend(text) {
		a.logger.Debug("alert suppressed, already sent", "first_line", firstLine(text))
		return nil
	}
	if a.next == nil {
		return nil
	}
	return a.next.Alert(ctx, text, imageURL)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

package publish

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAlerter struct {
	mu     sync.Mutex
	texts  []string
	images []string
}

func (r *recordingAlerter) Alert(_ context.Context, text, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.images = append(r.images, imageURL)
	return nil
}

func TestAlertDeduplicator_ShouldSend(t *testing.T) {
	d := NewAlertDeduplicator()

	assert.True(t, d.ShouldSend("disk full"))
	assert.False(t, d.ShouldSend("disk full"))
	assert.True(t, d.ShouldSend("disk full "), "any byte difference is a new alert")
}

func TestDedupAlerter_ForwardsOnce(t *testing.T) {
	next := &recordingAlerter{}
	a := NewDedupAlerter(next, nil, nil)

	require.NoError(t, a.Alert(context.Background(), "boom\nmore", "https://img/1.jpg"))
	require.NoError(t, a.Alert(context.Background(), "boom\nmore", "https://img/1.jpg"))
	require.NoError(t, a.Alert(context.Background(), "other", ""))

	assert.Equal(t, []string{"boom\nmore", "other"}, next.texts)
	assert.Equal(t, []string{"https://img/1.jpg", ""}, next.images)
}

func TestAlertDeduplicator_Concurrent(t *testing.T) {
	d := NewAlertDeduplicator()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.ShouldSend("same") {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, sent)
}

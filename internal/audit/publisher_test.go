package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tradepost/pkg/domain"
)

type failingSink struct{}

func (failingSink) Append(context.Context, Event) error {
	return errors.New("sink down")
}

func TestEmitFansOutToAllSinks(t *testing.T) {
	first := NewInMemoryStore()
	second := NewInMemoryStore()
	p := NewPublisher([]Sink{first, second})

	shopID := id.NewShopID()
	require.NoError(t, p.Emit(context.Background(), Event{
		ShopID: shopID,
		Action: ActionItemListed,
	}))

	for _, store := range []*InMemoryStore{first, second} {
		events, err := store.ListByShop(context.Background(), shopID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, ActionItemListed, events[0].Action)
		assert.False(t, events[0].Timestamp.IsZero())
	}
}

func TestEmitReportsFirstSinkError(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher([]Sink{failingSink{}, store})

	shopID := id.NewShopID()
	err := p.Emit(context.Background(), Event{ShopID: shopID, Action: ActionItemPurchased})
	require.Error(t, err)

	// The healthy sink may still have received the event; delivery is
	// best-effort per sink, not transactional across sinks.
	events, listErr := store.ListByShop(context.Background(), shopID)
	require.NoError(t, listErr)
	assert.LessOrEqual(t, len(events), 1)
}

func TestAsyncEmitDrains(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher([]Sink{store}, WithAsyncBuffer(16))

	shopID := id.NewShopID()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Emit(context.Background(), Event{
			ShopID:    shopID,
			Action:    ActionItemDelisted,
			Timestamp: time.Now(),
		}))
	}
	p.Close()

	events, err := store.ListByShop(context.Background(), shopID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

type countingSink struct {
	mu    sync.Mutex
	count int
}

func (s *countingSink) Append(context.Context, Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

func TestConcurrentEmit(t *testing.T) {
	sink := &countingSink{}
	p := NewPublisher([]Sink{sink})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Emit(context.Background(), Event{ShopID: id.NewShopID(), Action: ActionItemListed})
		}()
	}
	wg.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 10, sink.count)
}

package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesTypedAndAllHandlers(t *testing.T) {
	p := NewPublisher()

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	var got []string

	p.Subscribe(EventGameEnded, func(e Event) {
		mu.Lock()
		got = append(got, "typed:"+e.RoomID)
		mu.Unlock()
		wg.Done()
	})
	p.SubscribeAll(func(e Event) {
		mu.Lock()
		got = append(got, "all:"+string(e.Type))
		mu.Unlock()
		wg.Done()
	})
	p.Subscribe(EventGameStarted, func(Event) {
		t.Error("handler for another type was called")
	})

	p.Publish(Event{Type: EventGameEnded, RoomID: "r1"})

	waitTimeout(t, &wg)
	assert.ElementsMatch(t, []string{"typed:r1", "all:GAME_ENDED"}, got)
}

func TestPublishOnNilPublisher(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.Publish(Event{Type: EventRoomCreated})
	})
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handlers were not called")
	}
}

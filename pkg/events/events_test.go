package events

import (
	"sync"
	"testing"
)

func TestFeed_PublishDeliversToAllSubscribers(t *testing.T) {
	var f Feed[int]

	var got1, got2 []int
	f.Subscribe(func(v int) { got1 = append(got1, v) })
	f.Subscribe(func(v int) { got2 = append(got2, v) })

	f.Publish(1)
	f.Publish(2)

	for _, got := range [][]int{got1, got2} {
		if len(got) != 2 || got[0] != 1 || got[1] != 2 {
			t.Errorf("subscriber received %v, want [1 2]", got)
		}
	}
}

func TestFeed_CancelStopsDelivery(t *testing.T) {
	var f Feed[string]

	var count int
	cancel := f.Subscribe(func(string) { count++ })

	f.Publish("a")
	cancel()
	f.Publish("b")
	cancel() // idempotent

	if count != 1 {
		t.Errorf("got %d deliveries after cancel, want 1", count)
	}
	if f.Len() != 0 {
		t.Errorf("feed still has %d subscribers", f.Len())
	}
}

func TestFeed_ConcurrentSubscribePublish(t *testing.T) {
	var f Feed[int]
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancel := f.Subscribe(func(int) {})
			cancel()
		}()
		go func() {
			defer wg.Done()
			f.Publish(1)
		}()
	}
	wg.Wait()
}

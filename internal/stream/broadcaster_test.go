package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func startBroadcast(t *testing.T, b *Broadcaster, buffer int) chan []int16 {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	source := make(chan []int16, buffer)
	done := make(chan struct{})
	go func() {
		b.Run(ctx, source)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return source
}

func drain(l *Listener) int {
	n := 0
	for {
		select {
		case <-l.C:
			n++
		default:
			return n
		}
	}
}

// --- Subscription ---

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	l1 := b.Subscribe()
	l2 := b.Subscribe()
	if b.ListenerCount() != 2 {
		t.Errorf("ListenerCount = %d, want 2", b.ListenerCount())
	}

	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("after unsubscribe ListenerCount = %d, want 1", b.ListenerCount())
	}
	select {
	case <-l1.Done():
	default:
		t.Error("Done not closed after unsubscribe")
	}

	b.Unsubscribe(l1) // second call must not panic
	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0", b.ListenerCount())
	}
}

// --- Fan-out ---

func TestBroadcastDeliversToEveryListener(t *testing.T) {
	b := NewBroadcaster()
	listeners := []*Listener{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	source := startBroadcast(t, b, 10)

	source <- []int16{42, -42}

	for i, l := range listeners {
		select {
		case got := <-l.C:
			if len(got) != 2 || got[0] != 42 || got[1] != -42 {
				t.Errorf("listener %d got %v, want [42 -42]", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %d timed out", i)
		}
	}
	if st := b.Stats(); st.Frames != 1 || st.Listeners != 3 || st.Dropped != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestBroadcastDropsForSlowListener(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe()
	fast := b.Subscribe()
	source := startBroadcast(t, b, 200)

	fastCount := 0
	for i := 0; i < 200; i++ {
		source <- []int16{int16(i)}
		// keep the fast listener drained as frames arrive
		if i%50 == 49 {
			time.Sleep(20 * time.Millisecond)
			fastCount += drain(fast)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for b.Stats().Frames < 200 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	fastCount += drain(fast)

	if got := drain(slow); got != listenerBuffer {
		t.Errorf("slow listener buffered %d frames, want %d", got, listenerBuffer)
	}
	if slow.Dropped() != 200-listenerBuffer {
		t.Errorf("slow listener dropped %d, want %d", slow.Dropped(), 200-listenerBuffer)
	}
	if fastCount != 200 || fast.Dropped() != 0 {
		t.Errorf("fast listener got %d frames, dropped %d; want 200, 0", fastCount, fast.Dropped())
	}
	if b.Stats().Dropped != slow.Dropped() {
		t.Errorf("total dropped = %d, want %d", b.Stats().Dropped, slow.Dropped())
	}
}

func TestBroadcastStops(t *testing.T) {
	tests := map[string]func(cancel context.CancelFunc, source chan []int16){
		"context cancel": func(cancel context.CancelFunc, _ chan []int16) { cancel() },
		"source closed":  func(_ context.CancelFunc, source chan []int16) { close(source) },
	}
	for name, stop := range tests {
		t.Run(name, func(t *testing.T) {
			b := NewBroadcaster()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			source := make(chan []int16)
			done := make(chan struct{})
			go func() {
				b.Run(ctx, source)
				close(done)
			}()

			stop(cancel, source)
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("broadcaster did not stop")
			}
		})
	}
}

// --- Handlers ---

func TestHTTPHandlerWithoutFFmpeg(t *testing.T) {
	h := NewHTTPHandler(NewBroadcaster(), "/nonexistent/ffmpeg", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestWebRTCHandlerRejects(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/offer", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad offer status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/offer", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Methods") != "POST" {
		t.Errorf("preflight = %d %q", rec.Code, rec.Header().Get("Access-Control-Allow-Methods"))
	}
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount = %d, want 0", h.PeerCount())
	}
}

package server

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/hammycam/internal/reaction"
	"github.com/ayusman/hammycam/internal/store"
)

// staticFrames is a FrameProvider returning fixed bytes.
type staticFrames struct {
	data []byte
}

func (f *staticFrames) LatestFrame() []byte { return f.data }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestServer_Health(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestServer_Events(t *testing.T) {
	s := newTestStore(t)

	event := &store.Event{
		ID:             uuid.New().String(),
		Source:         "mock",
		DetectedAt:     time.Now().UTC(),
		FrameIndex:     12,
		ChangedPercent: 3.5,
		Regions:        []image.Rectangle{image.Rect(5, 5, 55, 105)},
	}
	if err := s.Events().Create(event); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	t.Run("List", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/events")
		if err != nil {
			t.Fatalf("GET /api/events error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var events []map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("events = %d, want 1", len(events))
		}
		if events[0]["id"] != event.ID {
			t.Errorf("event id = %v, want %s", events[0]["id"], event.ID)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/events/" + event.ID)
		if err != nil {
			t.Fatalf("GET /api/events/{id} error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var got map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		regions, ok := got["regions"].([]interface{})
		if !ok || len(regions) != 1 {
			t.Errorf("regions = %v, want one region", got["regions"])
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/events/does-not-exist")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp, err := ts.Client().Post(ts.URL+"/api/events", "application/json", nil)
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
		}
	})
}

func TestServer_Frame(t *testing.T) {
	frames := &staticFrames{data: []byte("jpeg-bytes")}
	srv := New(Config{Frames: frames})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("GET /api/frame error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
}

func TestServer_FrameUnavailable(t *testing.T) {
	srv := New(Config{Frames: &staticFrames{}})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("GET /api/frame error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestEventsHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewEventsHub()
	if hub.Name() != "websocket" {
		t.Errorf("Name() = %q", hub.Name())
	}

	// No clients connected: broadcast is a no-op, never an error.
	if err := hub.OnMotion(reaction.Event{ID: "x"}); err != nil {
		t.Errorf("OnMotion() error = %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestEventsHub_ClientReceivesEvent(t *testing.T) {
	hub := NewEventsHub()
	srv := New(Config{Hub: hub})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/api/motion"

	conn, _, err := dialWS(wsURL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// The hub registers the client asynchronously with the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("client never registered with hub")
	}

	sent := reaction.Event{
		ID:             uuid.New().String(),
		Source:         "mock",
		Timestamp:      time.Now().UTC(),
		FrameIndex:     3,
		ChangedPercent: 99.9,
	}
	if err := hub.OnMotion(sent); err != nil {
		t.Fatalf("OnMotion() error = %v", err)
	}

	var got reaction.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.ID != sent.ID {
		t.Errorf("received event ID = %q, want %q", got.ID, sent.ID)
	}
}

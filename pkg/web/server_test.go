package web

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pathsense/go-pathsense/pkg/history"
	"github.com/pathsense/go-pathsense/pkg/navigation"
	"github.com/pathsense/go-pathsense/pkg/protocol"
	"github.com/pathsense/go-pathsense/pkg/vision"
)

func newTestServer(t *testing.T, addr string, withStore bool) *Server {
	t.Helper()

	cfg := navigation.DefaultConfig()
	cfg.UpdateIntervalMS = 100
	cfg.StaleAfterMS = 2000

	var store *history.Store
	if withStore {
		var err error
		store, err = history.Open(filepath.Join(t.TempDir(), "readings.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}

	s := New(Options{
		Addr:     addr,
		Engine:   navigation.NewEngine(cfg),
		Analyzer: vision.NewAnalyzer(vision.DefaultConfig()),
		Store:    store,
	})
	t.Cleanup(func() { s.engine.Stop() })
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, ":0", false)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, ":0", false)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var state navigation.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.False(t, state.Running)
	require.Equal(t, "demo", state.Mode)
}

func TestSourcesEndpoint(t *testing.T) {
	s := newTestServer(t, ":0", false)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/sources", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var stats struct {
		SourceCount int `json:"source_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, 0, stats.SourceCount)
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(t, ":0", false)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/history", nil))
	require.NoError(t, err)
	require.Equal(t, 503, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/stats", nil))
	require.NoError(t, err)
	require.Equal(t, 503, resp.StatusCode)
}

func TestHistoryAndStats(t *testing.T) {
	s := newTestServer(t, ":0", true)

	for _, d := range []float64{30, 150} {
		r := navigation.Reading{
			DistanceCM: d,
			Direction:  navigation.DirectionLeft,
			Confidence: 1,
			Source:     "demo",
			At:         time.Now(),
		}
		require.NoError(t, s.store.Record(r, "demo", d < 50))
	}

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/history?limit=10", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var entries []history.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 2)
	require.Equal(t, 150.0, entries[0].DistanceCM)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/stats", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var sum history.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	require.Equal(t, 2, sum.Count)
	require.InDelta(t, 90.0, sum.MeanCM, 1e-9)
	require.InDelta(t, 0.5, sum.ObstacleRatio, 1e-9)
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestServer(t, ":0", false)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/config", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var view ConfigView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.NotNil(t, view.Engine)
	require.NotNil(t, view.Analyzer)

	// Change one engine knob, leave the analyzer untouched
	view.Engine.ObstacleThresholdCM = 80
	view.Analyzer = nil
	body, _ := json.Marshal(view)

	req := httptest.NewRequest("PUT", "/api/config", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, 80.0, s.engine.Config().ObstacleThresholdCM)
}

func TestConfigRejectsInvalid(t *testing.T) {
	s := newTestServer(t, ":0", false)
	before := s.engine.Config()

	body := `{"engine":{"update_interval_ms":1,"obstacle_threshold_cm":50,"min_distance_cm":10,"max_distance_cm":200,"stale_after_ms":5000,"repeat_cooldown_ms":4000}}`
	req := httptest.NewRequest("PUT", "/api/config", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, 400, resp.StatusCode)
	require.Equal(t, before, s.engine.Config())
}

// readUntil reads websocket messages until one of the wanted type arrives.
func readUntil(t *testing.T, ws *websocket.Conn, want protocol.MessageType) *protocol.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	ws.SetReadDeadline(deadline)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("no %q message before deadline", want)
		}
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		msg, err := protocol.ParseMessage(data)
		require.NoError(t, err)
		if msg.Type == want {
			return msg
		}
	}
}

func TestClientStartStopOverWebSocket(t *testing.T) {
	s := newTestServer(t, ":18090", false)
	s.StartAsync()
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18090/ws/updates", nil)
	require.NoError(t, err)
	defer ws.Close()

	// Greeting and initial snapshot
	readUntil(t, ws, protocol.TypeConnected)
	msg := readUntil(t, ws, protocol.TypeUpdate)
	update, err := msg.GetUpdateData()
	require.NoError(t, err)
	require.False(t, update.Running)

	// Start
	start, err := protocol.NewMessage(protocol.TypeStart, protocol.StartCommand{Mode: "demo"})
	require.NoError(t, err)
	data, _ := start.Bytes()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))

	readUntil(t, ws, protocol.TypeStarted)
	msg = readUntil(t, ws, protocol.TypeUpdate)
	update, err = msg.GetUpdateData()
	require.NoError(t, err)
	require.True(t, update.Running)

	// Stop
	stop, err := protocol.NewMessage(protocol.TypeStop, nil)
	require.NoError(t, err)
	data, _ = stop.Bytes()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))

	readUntil(t, ws, protocol.TypeStopped)

	deadline := time.Now().Add(3 * time.Second)
	for s.engine.Snapshot().Running {
		if time.Now().After(deadline) {
			t.Fatal("engine still running after stop")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSourceFramePipeline(t *testing.T) {
	s := newTestServer(t, ":18091", false)
	s.StartAsync()
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	s.engine.Start(navigation.ModeCamera)
	defer s.engine.Stop()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/source/cam-1", nil)
	require.NoError(t, err)
	defer ws.Close()

	// Dark, busy frame: should register as a near obstacle
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 40})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))

	frame, err := protocol.NewFrameMessage(64, 64, buf.Bytes(), 1)
	require.NoError(t, err)
	data, _ := frame.Bytes()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))

	deadline := time.Now().Add(3 * time.Second)
	for {
		snap := s.engine.Snapshot()
		if snap.Source == "cam-1" {
			require.Equal(t, "camera", snap.Mode)
			require.Greater(t, snap.DistanceCM, 0.0)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("engine never saw the frame reading, snapshot: %+v", snap)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if s.SourcesHub().GetStats().FramesReceived != 1 {
		t.Errorf("FramesReceived = %d, want 1", s.SourcesHub().GetStats().FramesReceived)
	}
}

package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/pipemux/internal/engine/sim"
	"github.com/smazurov/pipemux/internal/events"
	"github.com/smazurov/pipemux/internal/latency"
	"github.com/smazurov/pipemux/internal/metrics"
	"github.com/smazurov/pipemux/internal/pipelines"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds an API server over a running sim session and
// serves it from an httptest server.
func newTestServer(t *testing.T, username, password string) *httptest.Server {
	t.Helper()
	registry := pipelines.NewRegistry(sim.New(), testLogger())

	graphs := map[string]string{
		"video_link_0": "videotestsrc ! queue name=q ! fakesink",
		"video_link_1": "intersrc producer-name=link0 ! queue name=ingress_raw_video_queue ! fakesink",
	}
	for _, name := range []string{"video_link_0", "video_link_1"} {
		h, err := registry.Register(pipelines.Spec{
			Name:        name,
			GraphTokens: strings.Fields(graphs[name]),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := h.Pipeline.Play(); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { h.Pipeline.Stop() })
	}

	bus := events.New()
	server := NewServer(&Options{
		AuthUsername: username,
		AuthPassword: password,
		Registry:     registry,
		Coordinator:  latency.NewCoordinator(registry, bus, testLogger()),
		EventBus:     bus,
	})

	ts := httptest.NewServer(server.GetMux())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func doJSON(t *testing.T, method, url string, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, "", "")

	var health struct {
		Status string `json:"status"`
	}
	if code := getJSON(t, ts.URL+"/api/health", &health); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
	if health.Status != "ok" {
		t.Errorf("health.status = %q", health.Status)
	}
}

func TestListPipelinesEndpoint(t *testing.T) {
	ts := newTestServer(t, "", "")

	var list struct {
		Pipelines []struct {
			Name     string   `json:"name"`
			State    string   `json:"state"`
			Elements []string `json:"elements"`
		} `json:"pipelines"`
		Count int `json:"count"`
	}
	if code := getJSON(t, ts.URL+"/api/pipelines", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if list.Count != 2 || len(list.Pipelines) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list.Pipelines[0].Name != "video_link_0" || list.Pipelines[0].State != "running" {
		t.Errorf("first pipeline = %+v", list.Pipelines[0])
	}
	if len(list.Pipelines[0].Elements) != 3 {
		t.Errorf("elements = %v, want 3", list.Pipelines[0].Elements)
	}
}

func TestGetPipelineEndpoint(t *testing.T) {
	ts := newTestServer(t, "", "")

	var p struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	if code := getJSON(t, ts.URL+"/api/pipelines/video_link_0", &p); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if p.Name != "video_link_0" || p.State != "running" {
		t.Errorf("pipeline = %+v", p)
	}

	if code := getJSON(t, ts.URL+"/api/pipelines/nope", nil); code != http.StatusNotFound {
		t.Errorf("unknown pipeline status = %d, want 404", code)
	}
}

func TestLatencyEndpoints(t *testing.T) {
	ts := newTestServer(t, "", "")

	var lat struct {
		Pipeline string `json:"pipeline"`
		Live     bool   `json:"live"`
		MinMs    int64  `json:"min_ms"`
		MaxMs    int64  `json:"max_ms"`
	}
	if code := getJSON(t, ts.URL+"/api/pipelines/video_link_0/latency", &lat); code != http.StatusOK {
		t.Fatalf("latency status = %d", code)
	}
	if !lat.Live || lat.MinMs != 33 || lat.MaxMs != -1 {
		t.Errorf("latency = %+v, want live 33/-1", lat)
	}

	// Override the consumer pipeline and push the renegotiation.
	code := doJSON(t, http.MethodPut, ts.URL+"/api/pipelines/video_link_1/latency",
		`{"latency_ms": 5919}`, nil)
	if code != http.StatusOK {
		t.Fatalf("set latency status = %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/pipelines/video_link_1/latency", &lat); code != http.StatusOK {
		t.Fatal("latency query failed")
	}
	if lat.MinMs != 0 {
		t.Errorf("min before push = %d, want 0", lat.MinMs)
	}

	code = doJSON(t, http.MethodPost, ts.URL+"/api/pipelines/video_link_1/latency-event", "", &lat)
	if code != http.StatusOK {
		t.Fatalf("push latency event status = %d", code)
	}
	if lat.MinMs != 5919 {
		t.Errorf("min after push = %d, want 5919", lat.MinMs)
	}

	if code := getJSON(t, ts.URL+"/api/pipelines/nope/latency", nil); code != http.StatusNotFound {
		t.Errorf("unknown pipeline latency status = %d, want 404", code)
	}
}

func TestSetPropertyEndpoint(t *testing.T) {
	ts := newTestServer(t, "", "")
	base := ts.URL + "/api/pipelines/video_link_1/elements/ingress_raw_video_queue/properties/"

	var prop struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	}
	code := doJSON(t, http.MethodPut, base+"min-threshold-time", `{"value": "3000000000"}`, &prop)
	if code != http.StatusOK {
		t.Fatalf("set property status = %d", code)
	}
	if prop.Value != "3000000000" {
		t.Errorf("property response = %+v", prop)
	}

	code = doJSON(t, http.MethodPut, base+"frobnicate", `{"value": "1"}`, nil)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("unknown property status = %d, want 422", code)
	}

	code = doJSON(t, http.MethodPut, base+"min-threshold-time", `{"value": "fast"}`, nil)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("bad value status = %d, want 422", code)
	}

	code = doJSON(t, http.MethodPut,
		ts.URL+"/api/pipelines/video_link_1/elements/nope/properties/min-threshold-time",
		`{"value": "1"}`, nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown element status = %d, want 404", code)
	}
}

func TestPipelineMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "", "")

	metrics.SetPipelineState("video_link_0", "running")
	metrics.SetPipelineLatency("video_link_0", 33, -1)
	t.Cleanup(func() { metrics.DeletePipelineMetrics("video_link_0") })

	var m struct {
		State        string `json:"state"`
		LatencyMinMs int64  `json:"latency_min_ms"`
		LatencyMaxMs int64  `json:"latency_max_ms"`
	}
	if code := getJSON(t, ts.URL+"/api/pipelines/video_link_0/metrics", &m); code != http.StatusOK {
		t.Fatalf("metrics status = %d", code)
	}
	if m.State != "running" || m.LatencyMinMs != 33 || m.LatencyMaxMs != -1 {
		t.Errorf("metrics = %+v", m)
	}

	// No recorded values for the second pipeline yet.
	if code := getJSON(t, ts.URL+"/api/pipelines/video_link_1/metrics", nil); code != http.StatusNotFound {
		t.Errorf("unrecorded metrics status = %d, want 404", code)
	}
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, "operator", "secret")

	// Protected route without credentials.
	if code := getJSON(t, ts.URL+"/api/pipelines", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", code)
	}

	// Health stays open.
	if code := getJSON(t, ts.URL+"/api/health", nil); code != http.StatusOK {
		t.Errorf("health status = %d, want 200", code)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/pipelines", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization",
		"Basic "+base64.StdEncoding.EncodeToString([]byte("operator:secret")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp.StatusCode)
	}
}

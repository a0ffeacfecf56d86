package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/muurk/lifxlab/internal/control"
	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/dispatch"
	"github.com/muurk/lifxlab/internal/events"
	"github.com/muurk/lifxlab/internal/registry"
	"github.com/muurk/lifxlab/internal/transport"
)

// stubNet accepts every send and never receives anything
type stubNet struct {
	mu   sync.Mutex
	sent int
}

func (n *stubNet) SendBroadcast([]byte) error { return nil }

func (n *stubNet) SendUnicast([]byte, netip.AddrPort) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	return nil
}

func (n *stubNet) Receive(ctx context.Context, timeout time.Duration) (transport.Datagram, error) {
	select {
	case <-ctx.Done():
		return transport.Datagram{}, ctx.Err()
	case <-time.After(timeout):
		return transport.Datagram{}, transport.ErrTimeout
	}
}

func (n *stubNet) Close() error { return nil }

func newTestServer(t *testing.T, cfg Config) (*Server, *events.Hub, *stubNet) {
	t.Helper()

	reg := registry.New()
	reg.Upsert(0x01, netip.MustParseAddrPort("10.0.0.1:56700"))
	reg.Upsert(0x02, netip.MustParseAddrPort("10.0.0.2:56700"))

	stub := &stubNet{}
	hub := events.NewHub()
	coord := discovery.New(reg, transport.Config{},
		discovery.WithTimeout(5*time.Second),
		discovery.WithSink(hub),
		discovery.WithOpener(func() (discovery.Conn, error) { return stub, nil }),
	)
	disp := dispatch.New(transport.Config{},
		dispatch.WithOpener(func() (dispatch.Conn, error) { return stub, nil }),
	)
	ctrl := control.New(reg, coord, disp, control.DefaultOptions())

	s, err := New(cfg, ctrl, hub)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(coord.Stop)
	return s, hub, stub
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, control.Result) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res control.Result
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && strings.HasPrefix(rec.Body.String(), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, res
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})

	rec, _ := doRequest(t, s.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var health healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if health.Status != "ok" || health.Devices != 2 || health.State != "idle" {
		t.Errorf("health = %+v", health)
	}
	if health.TLS["enabled"] != false {
		t.Errorf("tls = %v, want disabled", health.TLS)
	}
	if !strings.HasPrefix(rec.Header().Get("Server"), "lifxlab/") {
		t.Errorf("Server header = %q", rec.Header().Get("Server"))
	}
}

func TestInvokeRoute(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantOK     bool
	}{
		{"lights on", "/api/invoke/lights_on", "", http.StatusOK, true},
		{"set color", "/api/invoke/set_color", `{"hue":120,"saturation":65535,"brightness":65535}`, http.StatusOK, true},
		{"alias", "/api/invoke/lights_set_color", `{"hue":1,"saturation":2,"brightness":3}`, http.StatusOK, true},
		{"bad arguments", "/api/invoke/set_color", `{"hue":1}`, http.StatusOK, false},
		{"unknown command", "/api/invoke/self_destruct", "", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, Config{})

			rec, res := doRequest(t, s.Handler(), http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if res.OK != tt.wantOK {
				t.Errorf("ok = %v, want %v (error %q)", res.OK, tt.wantOK, res.Error)
			}
		})
	}
}

func TestInvokeRoute_SendsToEveryDevice(t *testing.T) {
	s, _, stub := newTestServer(t, Config{})

	if _, res := doRequest(t, s.Handler(), http.MethodPost, "/api/invoke/lights_off", ""); !res.OK {
		t.Fatalf("lights_off failed: %s", res.Error)
	}
	if stub.sent != 2 {
		t.Errorf("sent %d frames, want 2", stub.sent)
	}
}

func TestDevicesRoute(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})

	rec, res := doRequest(t, s.Handler(), http.MethodGet, "/api/devices", "")
	if rec.Code != http.StatusOK || !res.OK {
		t.Fatalf("status = %d ok = %v", rec.Code, res.OK)
	}

	devices, ok := res.Data.([]any)
	if !ok || len(devices) != 2 {
		t.Errorf("data = %v, want two devices", res.Data)
	}
}

func TestForgetDeviceRoute(t *testing.T) {
	s, hub, _ := newTestServer(t, Config{})
	stream, unsubscribe := hub.Subscribe(4)
	defer unsubscribe()

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"known device", "/api/devices/0000000000000001", http.StatusOK},
		{"already forgotten", "/api/devices/0000000000000001", http.StatusNotFound},
		{"malformed identity", "/api/devices/not-hex", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, res := doRequest(t, s.Handler(), http.MethodDelete, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (error %q)", rec.Code, tt.wantStatus, res.Error)
			}
		})
	}

	if n := s.ctrl.Registry().Len(); n != 1 {
		t.Errorf("registry holds %d devices, want 1", n)
	}
	if _, ok := s.ctrl.Registry().Get(0x02); !ok {
		t.Error("unrelated device was removed")
	}

	select {
	case ev := <-stream:
		d, ok := ev.Payload.(registry.Device)
		if ev.Name != events.DeviceRemoved || !ok || d.Identity != 0x01 {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Error("no device_removed event emitted")
	}
	if len(stream) != 0 {
		t.Errorf("%d extra events emitted", len(stream))
	}
}

func TestShutdown_RejectsNewWork(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"start discovery", http.MethodPost, "/api/discover"},
		{"open event stream", http.MethodGet, "/api/events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := doRequest(t, s.Handler(), tt.method, tt.path, "")
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", rec.Code)
			}
		})
	}

	if state := s.ctrl.Coordinator().State(); state != discovery.StateIdle {
		t.Errorf("coordinator state = %s, want idle", state)
	}
	if s.GetActiveConnections() != 0 {
		t.Errorf("GetActiveConnections() = %d, want 0", s.GetActiveConnections())
	}
}

func TestDiscoverRoutes(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})

	rec, _ := doRequest(t, s.Handler(), http.MethodPost, "/api/discover", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first start status = %d, want 202", rec.Code)
	}

	rec, res := doRequest(t, s.Handler(), http.MethodPost, "/api/discover", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}
	if !strings.Contains(res.Error, discovery.ErrDiscoveryInProgress.Error()) {
		t.Errorf("error = %q", res.Error)
	}

	rec, _ = doRequest(t, s.Handler(), http.MethodDelete, "/api/discover", "")
	if rec.Code != http.StatusOK {
		t.Errorf("stop status = %d, want 200", rec.Code)
	}

	coord := s.ctrl.Coordinator()
	deadline := time.Now().Add(2 * time.Second)
	for coord.State() != discovery.StateIdle {
		if time.Now().After(deadline) {
			t.Fatal("discovery still running after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventStream(t *testing.T) {
	s, hub, _ := newTestServer(t, Config{})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Emit(events.DeviceDiscovered, discovery.DiscoveredDevice{
		IP:           "192.168.1.50",
		Port:         56700,
		Identity:     0x1122334455667788,
		ServiceTypes: []uint8{1},
		New:          true,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Event   string `json:"event"`
		Payload struct {
			IP       string `json:"ip"`
			Port     int    `json:"port"`
			Identity string `json:"identity"`
			New      bool   `json:"new"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	if got.Event != events.DeviceDiscovered {
		t.Errorf("event = %q, want %q", got.Event, events.DeviceDiscovered)
	}
	if got.Payload.IP != "192.168.1.50" || got.Payload.Port != 56700 || got.Payload.Identity != "1122334455667788" || !got.Payload.New {
		t.Errorf("payload = %+v", got.Payload)
	}
	if s.GetActiveConnections() != 1 {
		t.Errorf("GetActiveConnections() = %d, want 1", s.GetActiveConnections())
	}
}

func TestRun(t *testing.T) {
	s, _, _ := newTestServer(t, Config{ListenAddress: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	s, _, _ := newTestServer(t, Config{ListenAddress: l.Addr().String()})
	if err := s.Run(context.Background()); err == nil {
		t.Error("Run() on a busy port error = nil")
	}
}

func TestNewTLSConfig_Errors(t *testing.T) {
	if _, err := NewTLSConfig("", ""); err == nil {
		t.Error("NewTLSConfig() with empty paths error = nil")
	}
	if _, err := NewTLSConfig("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Error("NewTLSConfig() with missing files error = nil")
	}
	if info := GetTLSInfo(nil); info["enabled"] != false {
		t.Errorf("GetTLSInfo(nil) = %v", info)
	}
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name    string
		entry   func() *zeroconf.ServiceEntry
		wantNil bool
		wantURL string
	}{
		{
			name: "ipv4 bridge",
			entry: func() *zeroconf.ServiceEntry {
				e := zeroconf.NewServiceEntry("lifxlab on den", ServiceType, ServiceDomain)
				e.HostName = "den.local."
				e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
				e.Port = 8756
				e.Text = []string{"version=dev", "tls=false", "flag"}
				return e
			},
			wantURL: "http://192.168.1.20:8756",
		},
		{
			name: "tls bridge",
			entry: func() *zeroconf.ServiceEntry {
				e := zeroconf.NewServiceEntry("secure", ServiceType, ServiceDomain)
				e.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.3")}
				e.Port = 443
				e.Text = []string{"tls=true"}
				return e
			},
			wantURL: "https://10.0.0.3:443",
		},
		{
			name: "no address",
			entry: func() *zeroconf.ServiceEntry {
				e := zeroconf.NewServiceEntry("ghost", ServiceType, ServiceDomain)
				e.Port = 8756
				return e
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := parseServiceEntry(tt.entry())
			if tt.wantNil {
				if b != nil {
					t.Errorf("parseServiceEntry() = %+v, want nil", b)
				}
				return
			}
			if b == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if b.URL() != tt.wantURL {
				t.Errorf("URL() = %q, want %q", b.URL(), tt.wantURL)
			}
		})
	}
}

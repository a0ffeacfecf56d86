package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/dispatch"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/registry"
	"github.com/muurk/lifxlab/internal/transport"
)

// fakeNet serves as both the discovery and the command socket
type fakeNet struct {
	mu       sync.Mutex
	replies  []transport.Datagram
	unicasts [][]byte
	failAll  bool
}

func (f *fakeNet) SendBroadcast([]byte) error { return nil }

func (f *fakeNet) SendUnicast(data []byte, addr netip.AddrPort) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return &transport.SendError{Addr: addr.String(), Err: errors.New("network unreachable")}
	}
	f.unicasts = append(f.unicasts, append([]byte(nil), data...))
	return nil
}

func (f *fakeNet) Receive(ctx context.Context, timeout time.Duration) (transport.Datagram, error) {
	f.mu.Lock()
	if len(f.replies) > 0 {
		dg := f.replies[0]
		f.replies = f.replies[1:]
		f.mu.Unlock()
		return dg, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return transport.Datagram{}, ctx.Err()
	case <-time.After(timeout):
		return transport.Datagram{}, transport.ErrTimeout
	}
}

func (f *fakeNet) Close() error { return nil }

func (f *fakeNet) messages(t *testing.T) []protocol.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []protocol.Message
	for _, data := range f.unicasts {
		frame, err := protocol.Unpack(data)
		if err != nil {
			t.Fatalf("Unpack() error = %v", err)
		}
		msg, err := frame.Message()
		if err != nil {
			t.Fatalf("Message() error = %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func newTestController(net *fakeNet, reg *registry.Registry) *Controller {
	coord := discovery.New(reg, transport.Config{},
		discovery.WithTimeout(30*time.Millisecond),
		discovery.WithOpener(func() (discovery.Conn, error) { return net, nil }),
	)
	disp := dispatch.New(transport.Config{},
		dispatch.WithOpener(func() (dispatch.Conn, error) { return net, nil }),
	)
	return New(reg, coord, disp, DefaultOptions())
}

func seededRegistry() *registry.Registry {
	reg := registry.New()
	reg.Upsert(0x01, netip.MustParseAddrPort("10.0.0.1:56700"))
	reg.Upsert(0x02, netip.MustParseAddrPort("10.0.0.2:56700"))
	return reg
}

func TestInvoke_DiscoverLights(t *testing.T) {
	id := protocol.Target(0x1122334455667788)
	reply, err := protocol.BuildPacked(protocol.BuildOptions{Target: &id},
		&protocol.StateService{Service: protocol.ServiceUDP, Port: 56700})
	if err != nil {
		t.Fatalf("BuildPacked() error = %v", err)
	}

	net := &fakeNet{replies: []transport.Datagram{
		{Data: reply, Addr: netip.MustParseAddrPort("192.168.1.50:56700")},
	}}
	reg := registry.New()
	c := newTestController(net, reg)

	res := c.Invoke(context.Background(), CmdDiscoverLights, nil)
	if !res.OK {
		t.Fatalf("Invoke() error = %s", res.Error)
	}

	view, ok := res.Data.(DiscoveryView)
	if !ok || len(view.Devices) != 1 || view.Devices[0].Identity != id {
		t.Errorf("Data = %+v, want one device %s", res.Data, id)
	}
	if reg.Len() != 1 {
		t.Errorf("registry Len() = %d, want 1", reg.Len())
	}
}

func TestInvoke_Power(t *testing.T) {
	tests := []struct {
		command   string
		wantLevel uint16
		wantMs    uint32
	}{
		{CmdLightsOn, protocol.PowerLevelMax, 0},
		{CmdLightsOff, protocol.PowerLevelOff, 1},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			net := &fakeNet{}
			c := newTestController(net, seededRegistry())

			res := c.Invoke(context.Background(), tt.command, nil)
			if !res.OK {
				t.Fatalf("Invoke() error = %s", res.Error)
			}

			msgs := net.messages(t)
			if len(msgs) != 2 {
				t.Fatalf("sent %d frames, want 2", len(msgs))
			}
			for _, m := range msgs {
				p, ok := m.(*protocol.SetPower)
				if !ok || p.Level != tt.wantLevel || p.Duration != tt.wantMs {
					t.Errorf("sent %v, want level %d duration %d", m, tt.wantLevel, tt.wantMs)
				}
			}

			view := res.Data.(DispatchView)
			if view.Succeeded != 2 || view.Failed != 0 {
				t.Errorf("view = %+v", view)
			}
		})
	}
}

func TestInvoke_SetColor(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		args       string
		wantKelvin uint16
	}{
		{"default kelvin", CmdSetColor, `{"hue":120,"saturation":65535,"brightness":65535}`, 3500},
		{"alias", "lights_set_color", `{"hue":120,"saturation":65535,"brightness":65535}`, 3500},
		{"explicit kelvin", CmdSetColor, `{"hue":120,"saturation":65535,"brightness":65535,"kelvin":0}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := &fakeNet{}
			c := newTestController(net, seededRegistry())

			res := c.Invoke(context.Background(), tt.command, json.RawMessage(tt.args))
			if !res.OK {
				t.Fatalf("Invoke() error = %s", res.Error)
			}

			want := protocol.HSBK{Hue: 120, Saturation: 65535, Brightness: 65535, Kelvin: tt.wantKelvin}
			for _, m := range net.messages(t) {
				sc, ok := m.(*protocol.SetColor)
				if !ok || sc.Color != want {
					t.Errorf("sent %v, want color %v", m, want)
				}
			}
		})
	}
}

func TestInvoke_Errors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    string
		wantErr string
	}{
		{"unknown command", "reboot", "", `unknown command "reboot"`},
		{"set_color without args", CmdSetColor, "", "set_color: missing arguments"},
		{"set_color missing brightness", CmdSetColor, `{"hue":1,"saturation":2}`, "set_color: missing argument: brightness"},
		{"set_color out of range", CmdSetColor, `{"hue":70000,"saturation":2,"brightness":3}`, "set_color: invalid arguments"},
		{"set_color bad json", CmdSetColor, `{`, "set_color: invalid arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(&fakeNet{}, seededRegistry())

			res := c.Invoke(context.Background(), tt.command, json.RawMessage(tt.args))
			if res.OK {
				t.Fatal("Invoke() OK = true, want failure")
			}
			if !strings.HasPrefix(res.Error, tt.wantErr) {
				t.Errorf("Error = %q, want prefix %q", res.Error, tt.wantErr)
			}
		})
	}
}

func TestInvoke_AllDevicesFailed(t *testing.T) {
	c := newTestController(&fakeNet{failAll: true}, seededRegistry())

	res := c.Invoke(context.Background(), CmdLightsOff, nil)
	if res.OK {
		t.Fatal("Invoke() OK = true, want failure")
	}
	if !strings.Contains(res.Error, "lights_off: all 2 devices failed") {
		t.Errorf("Error = %q", res.Error)
	}

	view, ok := res.Data.(DispatchView)
	if !ok || view.Failed != 2 {
		t.Errorf("Data = %+v, want 2 failed outcomes", res.Data)
	}
}

func TestInvoke_NoDevicesIsNotAnError(t *testing.T) {
	net := &fakeNet{}
	c := newTestController(net, registry.New())

	res := c.Invoke(context.Background(), CmdLightsOn, nil)
	if !res.OK {
		t.Fatalf("Invoke() error = %s", res.Error)
	}
	if len(net.messages(t)) != 0 {
		t.Error("frames sent with an empty registry")
	}
}

func TestInvoke_ListDevices(t *testing.T) {
	c := newTestController(&fakeNet{}, seededRegistry())

	res := c.Invoke(context.Background(), CmdListDevices, nil)
	views, ok := res.Data.([]DeviceView)
	if !res.OK || !ok || len(views) != 2 {
		t.Fatalf("Invoke() = %+v", res)
	}
	if views[0].Identity != 0x01 || views[0].MAC != "01:00:00:00:00:00" {
		t.Errorf("views[0] = %+v", views[0])
	}
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(Result{Error: "lights_on: boom"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"ok":false,"error":"lights_on: boom"}` {
		t.Errorf("json = %s", data)
	}
}

// Package server implements the HTTP bridge that exposes the light
// controller to external shells.
//
// The bridge is a chi router with a small JSON API and a websocket event
// stream:
//
//	GET    /healthz               liveness, version, device count
//	GET    /api/commands          names accepted by /api/invoke
//	GET    /api/devices           registry snapshot
//	POST   /api/invoke/{command}  run a command with JSON arguments
//	POST   /api/discover          start a background discovery cycle
//	DELETE /api/discover          stop the running cycle
//	GET    /api/events            websocket stream of device events
//
// Invoke always answers 200 with a control.Result describing success or
// failure, except for unknown commands which answer 404.
//
// # Event Stream
//
// Each websocket message is one JSON events.Event. A device_discovered
// event is sent for every StateService reply during a discovery cycle and
// a device_removed event when the pruner evicts a stale device.
//
// # mDNS
//
// When Advertise is set the bridge registers itself as _lifxlab._tcp so
// that Browse on another host can find it.
//
// # Usage
//
//	srv, err := server.New(server.Config{ListenAddress: "127.0.0.1:8756"}, ctrl, hub)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx) // blocks until ctx is cancelled
package server

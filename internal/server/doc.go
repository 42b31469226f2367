// Package server exposes a receiver over HTTP and WebSocket.
//
// The server keeps one managed connection to the receiver (redialing
// with backoff when it drops) and bridges it to network clients:
//
//   - GET  /api/state    returns the current device state as JSON
//   - GET  /api/inputs   lists the selectable inputs
//   - POST /api/command  submits a control action
//   - GET  /ws           streams state snapshots as the device reports
//     changes
//
// WebSocket clients receive a full state snapshot on connect and after
// every device-reported change. Slow clients are dropped rather than
// allowed to stall the broadcast path.
package server

// Package sicp implements the Philips SICP protocol engine and per-panel
// controllers.
//
// SICP is a proprietary binary request/response protocol spoken by Philips
// signage panels over TCP. This package owns everything with real
// correctness and concurrency concerns: frame building and parsing,
// partial-read reassembly, retry policy, per-panel command serialisation,
// and the confirmed-state model that the surrounding integration layers
// (MQTT publishing, history recording, telemetry) consume.
//
// # Architecture
//
//	┌──────────────┐        ┌──────────────────┐   TCP
//	│  Integration │ notify │  DeviceManager   │ (one frame
//	│  listeners   │◄───────│  + Controllers   │◄──────────► panels
//	└──────────────┘        │  (this pkg)      │ per conn)
//	                        └──────────────────┘
//
// # Layering
//
//   - Frame / Checksum / Build* / Parse*: pure codec, no I/O.
//   - Transport: one TCP round trip per frame with bounded time.
//   - RetryExecutor: bounded retries of connection failures only.
//   - Controller: one panel's confirmed state and command/confirm protocol.
//   - Manager: roster, polling loops, listener fan-out, start/stop.
//
// # Wire format
//
// Every frame is self-describing: the first byte is the total frame length
// including itself, and the last byte is an XOR checksum over all preceding
// bytes. Replies are framed the same way, so the transport reads one length
// byte and then reassembles the remainder across partial reads.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// For a single panel, all network exchanges are totally ordered; across
// panels, operations proceed fully in parallel.
package sicp

// Package telemetry implements the inbound half of the fleet bridge: an
// append-only log of device status messages and the ingestor that feeds it
// from the broker.
//
// Payloads are opaque. Devices report whatever their firmware emits and the
// control plane stores it verbatim, keyed only by topic and arrival time.
// Reads are topic-scoped, newest first, and bounded; there is no
// aggregation and no interpretation here.
package telemetry

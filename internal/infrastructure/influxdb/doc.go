// Package influxdb provides the optional metrics mirror for DoseBox Core.
//
// When enabled, command publishes and telemetry ingestion volume are written
// as measurement points using the non-blocking batched write API. The mirror
// is strictly observational: the SQLite telemetry log remains the system of
// record, and a mirror outage never blocks the command or ingestion paths.
package influxdb

// Package api provides the HTTP REST API for DoseBox Core.
//
// It exposes the schedule catalog, organizer registry, per-column device
// state, and the telemetry log to caregiver-facing clients. Authentication
// happens in a fronting proxy; the acting user arrives as an X-Principal
// header and is enforced against organizer ownership and shares.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

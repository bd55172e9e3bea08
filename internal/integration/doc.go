// Package integration defines the protocol-adapter contract and the
// manager that drives adapter lifecycles.
//
// Integrations are a closed, compile-time set. Each one is constructed
// by the composition root, then receives a narrow Context at Setup —
// discovery upserts and event publishing, nothing more. The manager
// supervises optional background tasks (restarting crashed ones with
// backoff), routes service calls to the integration owning the target
// entity's device, and tears everything down in reverse order at
// shutdown.
package integration

// Package gateway wires the finmcp server components together.
//
// # Overview
//
// The gateway owns the SQLite store, the finance tool pack, the tool router,
// the JSON-RPC dispatcher, the advisory orchestrator, and the transports. The
// CLI builds one with New and then either serves the protocol with Run or
// drives the pipeline directly with RunPipeline.
//
// # Transports
//
// server.transport selects how the protocol is served:
//
//   - stdio: newline-delimited JSON-RPC on the process streams. Run returns
//     when stdin reaches EOF. If metrics are enabled and metrics.addr is set,
//     /metrics is served on that address.
//   - http: POST/DELETE /mcp, GET /health and (when enabled) the metrics path
//     on server.http_addr.
//
// # Generator Selection
//
// The orchestrator's text generator comes from the llm section. Provider
// "template", or an empty API key, selects the deterministic llm.Template.
// Otherwise an OpenAI-compatible chat completions client is built.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx)
//
// Run shuts down with a fresh five second context once the run context is
// canceled or the transport stops. Commands that never call Run must call
// Shutdown to close the store.
package gateway

// Package packs provides the tool catalog: registry, argument validation, and dispatch.
//
// # Overview
//
// Tools are grouped into built-in packs that execute in-process. Every caller,
// whether a protocol transport or the analysis pipeline, reaches a tool through
// the same Router.
//
// # Architecture
//
//   - Registry: ordered map of tool name to handler and compiled input schema
//   - Router: validates arguments, applies a timeout, and runs the handler
//   - Built-in packs: the finance tools (see internal/builtins)
//
// # Registration
//
// RegisterBuiltinPack checks every definition before accepting any of them:
// the name is set, the handler is non-nil, and InputSchemaJSON is an object
// schema whose required fields are declared properties. A malformed definition
// returns ErrInvalidTool and a duplicate name returns ErrToolCollision. Tools
// are listed in the order they were registered.
//
// # Tool Routing
//
// When a tool is called, the router:
//
//  1. Looks up the tool by name in the registry
//  2. Validates the arguments against the tool's schema
//  3. Runs the handler under the per-tool timeout
//  4. Sorts the outcome into a result, a tool failure, or an error
//
// Handlers signal a rejected operation (unknown customer, bad date) by returning
// a *ToolFailure. The router turns that into a ToolResult whose Failure field is
// set. Any other handler error is wrapped in ErrToolExecution so transports can
// answer with a generic message.
//
// # Usage
//
//	registry := packs.NewRegistry(logger)
//	if err := registry.RegisterBuiltinPack(builtins.FinancePack(store)); err != nil {
//		return err
//	}
//	router := packs.NewRouter(packs.RouterConfig{Registry: registry, Logger: logger})
//	result, err := router.RouteToolCall(ctx, "get_customer_profile", args, requestID, caller)
package packs

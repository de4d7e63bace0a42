// Package bridge connects a local client speaking newline-delimited JSON-RPC on stdio to a remote
// MCP server reachable only through an SSE push stream and HTTP POST submissions.
//
// Every local request is recorded before it is posted, replies arriving on the push stream are matched
// by id, duplicates are suppressed and notifications are never answered. Requests that cannot be
// answered by the remote get a synthesized JSON-RPC error instead, so each request gets exactly one reply.
//
//	mcpb -u https://host/sse -t $TOKEN
package bridge

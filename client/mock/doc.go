// Package mock provides an in-process SSE server transport used to exercise the remote session client.
//
// It mirrors the behaviour of common MCP SSE servers: GET /sse opens a push stream whose first
// event is `endpoint` carrying `/messages/?session_id=<id>`, POST /messages/ accepts one JSON-RPC
// message and answers 202, replies travel back over the push stream.
package mock

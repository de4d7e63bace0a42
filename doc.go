// Package mcpb connects stdio MCP clients and servers to remote HTTP/SSE peers.
//
// The bridge (mcpb) lets a local client that speaks newline delimited JSON-RPC talk to a
// remote SSE server, guaranteeing every request exactly one reply. The relay (mcpr) does the
// reverse: it exposes a stdio server over HTTP/SSE, one backend process per session.
//
//	srv, _ := mcpb.NewRelay(&mcpb.RelayOptions{Port: 3000, Command: []string{"python", "server.py"}})
//	log.Fatal(srv.HTTP(ctx, ":3000").ListenAndServe())
package mcpb

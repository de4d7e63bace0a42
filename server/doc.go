// Package server provides the relay: an HTTP/SSE front for a stdio JSON-RPC backend.
//
// Every push stream gets its own backend, started through a backend.Factory. Submissions
// posted with the stream's session id are written to that backend, and its output is
// streamed back as SSE events:
//
//	srv, _ := server.New(server.WithCommand("python", []string{"server.py"}), server.WithToken(token))
//	log.Fatal(srv.HTTP(ctx, ":3000").ListenAndServe())
package server

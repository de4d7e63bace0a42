// Package client maintains the push stream of a remote MCP SSE server.
//
// A Client keeps one GET stream open, learns the session id from the first endpoint
// event and posts messages on that session. Every stream gets a new generation; when it
// ends the listener is told and the client reconnects with exponential backoff:
//
//	cli, _ := client.New("https://mcp.example.com/sse", client.WithToken(token), client.WithListener(listener))
//	go cli.Run(ctx)
//	session, err := cli.Send(ctx, data)
package client

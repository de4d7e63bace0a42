package schema

import "github.com/viant/mcp-protocol/schema"

const (
	MethodInitialize              = schema.MethodInitialize
	MethodNotificationInitialized = schema.MethodNotificationInitialized
	MethodNotificationCancel      = "notifications/cancelled"
)

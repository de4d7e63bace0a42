package correlator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	mcpschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcpb/client"
	"github.com/viant/mcpb/schema"
)

// handshake remembers the local client's initialize exchange so it can be replayed on a replacement session
type handshake struct {
	params      json.RawMessage
	completedOn uint64
}

// observe inspects a local message; guarded by mux
func (c *Correlator) observe(message *schema.Message) {
	if message.Method != schema.MethodInitialize || !message.IsRequest() {
		return
	}
	c.handshake.params = append(json.RawMessage{}, message.Params...)
	c.handshake.completedOn = 0
	params := &mcpschema.InitializeRequestParams{}
	if err := json.Unmarshal(message.Params, params); err == nil {
		c.logger.Debug().Str("client", params.ClientInfo.Name).Str("protocol", params.ProtocolVersion).Msg("local client initializing")
	}
}

// OnSessionReady replays the initialize handshake when the local client completed it on an earlier session
func (c *Correlator) OnSessionReady(session *client.Session) {
	c.mux.Lock()
	params, completedOn := c.handshake.params, c.handshake.completedOn
	c.mux.Unlock()
	if !c.reinitialize || params == nil || completedOn == 0 || completedOn == session.Generation {
		return
	}
	if err := c.replay(session, params); err != nil {
		c.logger.Warn().Err(err).Str("session", session.ID).Msg("failed to re-initialize session")
	}
}

func (c *Correlator) replay(session *client.Session, params json.RawMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	id, _ := json.Marshal("mcpb-" + uuid.NewString())
	request := schema.NewRequest(id, schema.MethodInitialize, params)
	data, err := request.Encode()
	if err != nil {
		return err
	}
	waiter := &pending{
		id:          id,
		key:         request.IDKey(),
		method:      request.Method,
		submittedAt: c.now(),
		generation:  session.Generation,
		internal:    true,
		done:        make(chan *schema.Message, 1),
	}
	c.mux.Lock()
	c.pending[waiter.key] = waiter
	c.mux.Unlock()
	if err = c.sender.SendTo(ctx, session, data); err != nil {
		c.take(waiter)
		return err
	}

	var reply *schema.Message
	select {
	case reply = <-waiter.done:
	case <-session.Done():
		c.take(waiter)
		return session.Err()
	case <-ctx.Done():
		c.take(waiter)
		return ctx.Err()
	}
	if reply == nil {
		return fmt.Errorf("initialize was not answered")
	}
	if len(reply.Error) > 0 {
		return fmt.Errorf("initialize rejected: %s", reply.Error)
	}

	data, err = schema.NewNotification(schema.MethodNotificationInitialized, nil).Encode()
	if err != nil {
		return err
	}
	if err = c.sender.SendTo(ctx, session, data); err != nil {
		return err
	}
	c.mux.Lock()
	c.handshake.completedOn = session.Generation
	c.mux.Unlock()
	event := c.logger.Info().Str("session", session.ID)
	result := &mcpschema.InitializeResult{}
	if err = json.Unmarshal(reply.Result, result); err == nil {
		event = event.Str("server", result.ServerInfo.Name).Str("protocol", result.ProtocolVersion)
	}
	event.Msg("session re-initialized")
	return nil
}

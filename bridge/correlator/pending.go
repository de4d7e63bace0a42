package correlator

import (
	"encoding/json"
	"time"

	"github.com/viant/mcpb/schema"
)

// pending represents a request awaiting its reply
type pending struct {
	id          json.RawMessage
	key         string
	method      string
	submittedAt time.Time
	generation  uint64
	internal    bool
	done        chan *schema.Message
}

// outbound represents a queued submission; request is nil for untracked messages
type outbound struct {
	data    []byte
	method  string
	request *pending
}

// resolve hands the reply to an internal waiter, nil signals failure
func (p *pending) resolve(message *schema.Message) {
	select {
	case p.done <- message:
	default:
	}
}

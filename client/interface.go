package client

// Listener receives session life cycle and inbound push stream messages
type Listener interface {
	// OnSessionReady is called once a session id is known, before the session accepts sends.
	OnSessionReady(session *Session)

	// OnMessage is called with the data of every push stream message
	OnMessage(session *Session, data []byte)

	// OnSessionClosed is called once per session when it closes
	OnSessionClosed(session *Session, err error)
}

type nopListener struct{}

func (nopListener) OnSessionReady(*Session) {}

func (nopListener) OnMessage(*Session, []byte) {}

func (nopListener) OnSessionClosed(*Session, error) {}

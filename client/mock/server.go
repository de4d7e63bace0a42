package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/mcpb/internal/sse"
	"github.com/viant/mcpb/schema"
)

// Handler reacts to a submitted message
type Handler func(server *Server, session *Session, message *schema.Message)

// Session represents one open push stream
type Session struct {
	ID       string
	messages chan string
	done     chan struct{}
	once     sync.Once
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// Server is a mock SSE server transport
type Server struct {
	// SessionKey names the endpoint query parameter, session_id by default
	SessionKey string
	// OmitEndpoint suppresses the endpoint event
	OmitEndpoint bool
	// Token, when set, is required as a bearer credential
	Token string
	// Handler handles submissions, Echo by default
	Handler Handler

	httpServer *httptest.Server
	mux        sync.Mutex
	sessions   map[string]*Session
	order      []*Session
	received   []*schema.Message
	opened     chan *Session
}

// URL returns the push stream URL
func (s *Server) URL() string {
	return s.httpServer.URL + "/sse"
}

// Close stops the server
func (s *Server) Close() {
	s.mux.Lock()
	for _, session := range s.sessions {
		session.close()
	}
	s.mux.Unlock()
	s.httpServer.Close()
}

// Push publishes data as a message event on the session stream
func (s *Server) Push(session *Session, data string) {
	select {
	case session.messages <- data:
	case <-session.done:
	}
}

// Reply publishes a response with result for the supplied request
func (s *Server) Reply(session *Session, request *schema.Message, result interface{}) {
	data, _ := json.Marshal(result)
	reply := &schema.Message{Jsonrpc: "2.0", Id: request.Id, Result: data}
	encoded, _ := reply.Encode()
	s.Push(session, string(encoded))
}

// Drop terminates the push stream and forgets the session
func (s *Server) Drop(session *Session) {
	s.mux.Lock()
	delete(s.sessions, session.ID)
	s.mux.Unlock()
	session.close()
}

// Forget removes the session so that later submissions get 404 while the stream stays open
func (s *Server) Forget(session *Session) {
	s.mux.Lock()
	delete(s.sessions, session.ID)
	s.mux.Unlock()
}

// WaitSession waits for the next opened push stream
func (s *Server) WaitSession(ctx context.Context) (*Session, error) {
	select {
	case session := <-s.opened:
		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Received returns submitted messages
func (s *Server) Received() []*schema.Message {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]*schema.Message{}, s.received...)
}

// WaitReceived waits until at least count messages were submitted
func (s *Server) WaitReceived(ctx context.Context, count int) ([]*schema.Message, error) {
	for {
		if received := s.Received(); len(received) >= count {
			return received, nil
		}
		select {
		case <-ctx.Done():
			return s.Received(), ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.Token == "" {
		return true
	}
	if r.Header.Get("Authorization") != "Bearer "+s.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	session := &Session{ID: strings.ReplaceAll(uuid.NewString(), "-", ""), messages: make(chan string, 64), done: make(chan struct{})}
	s.mux.Lock()
	s.sessions[session.ID] = session
	s.order = append(s.order, session)
	s.mux.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	writer := sse.NewWriter(w)
	if !s.OmitEndpoint {
		_ = writer.Write(&sse.Event{Event: "endpoint", Data: fmt.Sprintf("/messages/?%v=%v", s.sessionKey(), session.ID)})
	} else {
		_ = writer.Comment("connected")
	}
	select {
	case s.opened <- session:
	default:
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-session.done:
			return
		case data := <-session.messages:
			if err := writer.Write(&sse.Event{Event: "message", Data: data}); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	id := r.URL.Query().Get(s.sessionKey())
	s.mux.Lock()
	session, ok := s.sessions[id]
	if !ok && s.OmitEndpoint && id != "" {
		if len(s.order) > 0 {
			session, ok = s.order[len(s.order)-1], true
		}
	}
	s.mux.Unlock()
	if !ok {
		http.Error(w, "Could not find session", http.StatusNotFound)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	message, err := schema.Decode(data)
	if err != nil {
		http.Error(w, "Could not parse message", http.StatusBadRequest)
		return
	}
	s.mux.Lock()
	s.received = append(s.received, message)
	handler := s.Handler
	s.mux.Unlock()
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Accepted"))
	if handler != nil {
		go handler(s, session, message)
	}
}

func (s *Server) sessionKey() string {
	if s.SessionKey == "" {
		return "session_id"
	}
	return s.SessionKey
}

// SetHandler replaces the submission handler
func (s *Server) SetHandler(handler Handler) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.Handler = handler
}

// Echo replies to every request with {"method": <method>}
func Echo(server *Server, session *Session, message *schema.Message) {
	if !message.IsRequest() {
		return
	}
	server.Reply(session, message, map[string]string{"method": message.Method})
}

// New starts a mock server
func New(options ...func(s *Server)) *Server {
	ret := &Server{Handler: Echo, sessions: map[string]*Session{}, opened: make(chan *Session, 16)}
	for _, opt := range options {
		opt(ret)
	}
	router := http.NewServeMux()
	router.HandleFunc("/sse", ret.handleStream)
	router.HandleFunc("/messages/", ret.handleMessage)
	router.HandleFunc("/messages", ret.handleMessage)
	ret.httpServer = httptest.NewServer(router)
	return ret
}

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/viant/jsonrpc"
)

const (
	maxNumericIDLength   = 64
	maxNumericIDExponent = 64
)

var null = []byte("null")

// Message represents a JSON-RPC 2.0 envelope. All payload members are kept raw so that
// relayed messages are never re-encoded.
type Message struct {
	Jsonrpc string          `json:"jsonrpc,omitempty"`
	Id      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Decode parses a single JSON-RPC object
func Decode(data []byte) (*Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("invalid message: expected JSON object")
	}
	message := &Message{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return message, nil
}

// HasID returns true when the id member is present and not null; 0 and "" are valid ids.
func (m *Message) HasID() bool {
	id := bytes.TrimSpace(m.Id)
	return len(id) > 0 && !bytes.Equal(id, null)
}

// IsRequest returns true for messages carrying both method and id
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.HasID()
}

// IsNotification returns true for messages carrying a method without id
func (m *Message) IsNotification() bool {
	return m.Method != "" && !m.HasID()
}

// IsResponse returns true for messages carrying an id without method
func (m *Message) IsResponse() bool {
	return m.Method == "" && m.HasID()
}

// IDKey returns comparison key of the message id
func (m *Message) IDKey() string {
	return IDKey(m.Id)
}

// Fingerprint returns a content hash of the result, or of the error when no result is present.
func (m *Message) Fingerprint() string {
	payload := m.Result
	if len(payload) == 0 {
		payload = m.Error
	}
	buffer := bytes.Buffer{}
	if err := json.Compact(&buffer, payload); err != nil {
		buffer.Reset()
		buffer.Write(payload)
	}
	return strconv.FormatUint(xxhash.Sum64(buffer.Bytes()), 16)
}

// IDKey returns a canonical key for a raw JSON id. Numbers and strings never collide:
// 1 and 1.0 share a key, 1 and "1" do not. Absent or null ids return an empty key.
func IDKey(id json.RawMessage) string {
	id = bytes.TrimSpace(id)
	if len(id) == 0 || bytes.Equal(id, null) {
		return ""
	}
	switch id[0] {
	case '"':
		var text string
		if err := json.Unmarshal(id, &text); err == nil {
			return "s:" + text
		}
	case '{', '[', 't', 'f':
	default:
		if key, ok := numberKey(string(id)); ok {
			return key
		}
	}
	return "r:" + string(id)
}

// numberKey canonicalizes a numeric id. Long numbers and large exponents are keyed by their
// raw text so that expanding them stays bounded.
func numberKey(text string) (string, bool) {
	if len(text) > maxNumericIDLength {
		return "", false
	}
	if i := strings.IndexAny(text, "eE"); i != -1 {
		exponent, err := strconv.Atoi(text[i+1:])
		if err != nil || exponent > maxNumericIDExponent || exponent < -maxNumericIDExponent {
			return "", false
		}
	}
	number, ok := new(big.Float).SetPrec(256).SetString(text)
	if !ok {
		return "", false
	}
	if number.IsInt() {
		integer, _ := number.Int(nil)
		return "n:" + integer.String(), true
	}
	return "n:" + number.Text('g', -1), true
}

// NewErrorResponse creates an error reply for the supplied id
func NewErrorResponse(id json.RawMessage, rpcError *jsonrpc.Error) *Message {
	data, err := json.Marshal(rpcError)
	if err != nil {
		data, _ = json.Marshal(jsonrpc.NewInternalError(err.Error(), nil))
	}
	return &Message{Jsonrpc: jsonrpc.Version, Id: id, Error: data}
}

// NewNotification creates a notification message
func NewNotification(method string, params json.RawMessage) *Message {
	return &Message{Jsonrpc: jsonrpc.Version, Method: method, Params: params}
}

// NewRequest creates a request message
func NewRequest(id json.RawMessage, method string, params json.RawMessage) *Message {
	return &Message{Jsonrpc: jsonrpc.Version, Id: id, Method: method, Params: params}
}

// Encode writes the message as a single compact JSON line without HTML escaping
func (m *Message) Encode() ([]byte, error) {
	buffer := bytes.Buffer{}
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buffer.Bytes(), "\n"), nil
}

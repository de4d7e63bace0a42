package sse

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_Decode(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    []*Event
	}{
		{
			description: "endpoint event",
			input:       "event: endpoint\ndata: /messages/?session_id=abc\n\n",
			expected:    []*Event{{Event: "endpoint", Data: "/messages/?session_id=abc"}},
		},
		{
			description: "multi line data with comment and crlf",
			input:       ": ping\r\n\r\nevent: message\r\ndata: {\"a\":\r\ndata: 1}\r\n\r\n",
			expected:    []*Event{{Event: "message", Data: "{\"a\":\n1}"}},
		},
		{
			description: "id and retry",
			input:       "id: 7\nretry: 1500\ndata:x\n\ndata: y\n\n",
			expected: []*Event{
				{ID: "7", Data: "x", Retry: 1500 * time.Millisecond},
				{ID: "7", Data: "y"},
			},
		},
		{
			description: "incomplete event discarded",
			input:       "data: complete\n\ndata: partial\n",
			expected:    []*Event{{Data: "complete"}},
		},
	}

	for _, testCase := range testCases {
		decoder := NewDecoder(strings.NewReader(testCase.input))
		var actual []*Event
		for {
			event, err := decoder.Decode()
			if err != nil {
				assert.True(t, err == io.EOF || err == io.ErrUnexpectedEOF, testCase.description)
				break
			}
			actual = append(actual, event)
		}
		assert.EqualValues(t, testCase.expected, actual, testCase.description)
	}
}

func TestWriter_Write(t *testing.T) {
	buffer := &bytes.Buffer{}
	writer := NewWriter(buffer)
	require.NoError(t, writer.Write(&Event{Event: "endpoint", Data: "/messages/?session_id=1"}))
	require.NoError(t, writer.Comment("ping"))
	require.NoError(t, writer.Write(&Event{Event: "message", Data: "a\nb"}))
	assert.Equal(t, "event: endpoint\ndata: /messages/?session_id=1\n\n: ping\n\nevent: message\ndata: a\ndata: b\n\n", buffer.String())

	decoder := NewDecoder(bytes.NewReader(buffer.Bytes()))
	event, err := decoder.Decode()
	require.NoError(t, err)
	assert.Equal(t, "endpoint", event.Name())
	event, err = decoder.Decode()
	require.NoError(t, err)
	assert.Equal(t, "a\nb", event.Data)
}

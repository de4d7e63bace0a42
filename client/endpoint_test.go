package client

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "session_id", SessionKey)
}

func TestExtractSessionID(t *testing.T) {
	testCases := []struct {
		description string
		fragment    string
		key         string
		expectID    string
		expectOK    bool
	}{
		{description: "endpoint fragment", fragment: "/messages/?session_id=4f2a9c", key: SessionKey, expectID: "4f2a9c", expectOK: true},
		{description: "among other params", fragment: "/messages/?x=1&session_id=abc&y=2", key: SessionKey, expectID: "abc", expectOK: true},
		{description: "absolute url", fragment: "https://host/messages?session_id=abc#frag", key: SessionKey, expectID: "abc", expectOK: true},
		{description: "escaped value", fragment: "/messages/?session_id=a%2Bb", key: SessionKey, expectID: "a+b", expectOK: true},
		{description: "camel case key is not the session key", fragment: "/messages/?sessionId=abc", key: SessionKey, expectOK: false},
		{description: "mixed case key is not the session key", fragment: "/messages/?session_Id=abc", key: SessionKey, expectOK: false},
		{description: "prefixed key is not the session key", fragment: "/messages/?xsession_id=abc", key: SessionKey, expectOK: false},
		{description: "custom key", fragment: "/message?sessionId=abc", key: "sessionId", expectID: "abc", expectOK: true},
		{description: "no query", fragment: "/messages/", key: SessionKey, expectOK: false},
	}
	for _, testCase := range testCases {
		id, ok := ExtractSessionID(testCase.fragment, testCase.key)
		assert.Equal(t, testCase.expectOK, ok, testCase.description)
		assert.Equal(t, testCase.expectID, id, testCase.description)
	}
}

func TestWithSession(t *testing.T) {
	streamURL, err := url.Parse("http://localhost:3000/sse")
	require.NoError(t, err)
	messageURL, err := MessageURL(streamURL, "/messages/?session_id=abc")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/messages/?session_id=abc", WithSession(messageURL, SessionKey, "abc").String())

	messageURL, err = MessageURL(streamURL, "/messages/")
	require.NoError(t, err)
	actual := WithSession(messageURL, SessionKey, "xyz")
	assert.Equal(t, "http://localhost:3000/messages/?session_id=xyz", actual.String())
	assert.Equal(t, "xyz", actual.Query().Get("session_id"))
	assert.Equal(t, "", messageURL.RawQuery)
}

package credential

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	testCases := []struct {
		description string
		header      string
		expected    error
	}{
		{description: "missing", header: "", expected: ErrMissing},
		{description: "wrong scheme", header: "Basic abc", expected: ErrMalformed},
		{description: "no token", header: "Bearer", expected: ErrMalformed},
		{description: "wrong token", header: "Bearer nope", expected: ErrInvalid},
		{description: "valid", header: "Bearer secret", expected: nil},
		{description: "scheme case", header: "bearer secret", expected: nil},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, Verify(testCase.header, "secret"), testCase.description)
	}
}

func TestTransport(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := &http.Client{Transport: Transport(nil, "secret")}
	response, err := client.Get(server.URL)
	require.NoError(t, err)
	_ = response.Body.Close()
	assert.Equal(t, "Bearer secret", header)

	client = &http.Client{Transport: Transport(nil, "")}
	response, err = client.Get(server.URL)
	require.NoError(t, err)
	_ = response.Body.Close()
	assert.Equal(t, "", header)
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("key"))
	require.NoError(t, err)

	actual, ok := Expiry(token)
	assert.True(t, ok)
	assert.True(t, exp.Equal(actual))

	_, ok = Expiry("opaque-token")
	assert.False(t, ok)
}

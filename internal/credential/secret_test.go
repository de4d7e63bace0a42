package credential

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/scy"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()
	encrypted := filepath.Join(t.TempDir(), "token.enc")
	require.NoError(t, scy.New().Store(ctx, scy.NewSecret("stored-token", scy.NewResource("", encrypted, DefaultSecretKey))))
	plain := filepath.Join(t.TempDir(), "token.txt")
	require.NoError(t, os.WriteFile(plain, []byte("plain-token\n"), 0o600))

	testCases := []struct {
		description string
		token       string
		URL         string
		key         string
		expect      string
		expectErr   bool
	}{
		{description: "inline token", token: "inline", expect: "inline"},
		{description: "encrypted resource", token: "ignored", URL: encrypted, key: DefaultSecretKey, expect: "stored-token"},
		{description: "plain resource", URL: plain, expect: "plain-token"},
		{description: "missing resource", URL: filepath.Join(t.TempDir(), "missing.enc"), key: DefaultSecretKey, expectErr: true},
	}
	for _, testCase := range testCases {
		actual, err := Resolve(ctx, testCase.token, testCase.URL, testCase.key)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}

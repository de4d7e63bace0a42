package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

func TestLoad(t *testing.T) {
	location := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(location, []byte("url: http://localhost:3000/sse\ntimeout: 45s\nretries: 2\n"), 0o644))

	actual := &sample{}
	require.NoError(t, Load(context.Background(), location, actual))
	assert.EqualValues(t, &sample{URL: "http://localhost:3000/sse", Timeout: 45 * time.Second, Retries: 2}, actual)

	assert.Error(t, Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), actual))
}

// Package config loads YAML configuration from any storage location supported by afs.
package config

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

var fs = afs.New()

// Load decodes the YAML document at URL into target
func Load(ctx context.Context, URL string, target interface{}) error {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to download config %v: %w", URL, err)
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	return nil
}

package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/scy"
	_ "github.com/viant/scy/kms/blowfish"
)

// DefaultSecretKey is the kms key used for token resources when none is given
const DefaultSecretKey = "blowfish://default"

// Resolve returns token, or the secret stored at URL when URL is set. The resource may be
// encrypted with key (see scy) and may live on any storage afs supports.
func Resolve(ctx context.Context, token, URL, key string) (string, error) {
	if URL == "" {
		return token, nil
	}
	resource := scy.NewResource("", URL, key)
	secret, err := scy.New().Load(ctx, resource)
	if err != nil {
		return "", fmt.Errorf("failed to load token from %v: %w", URL, err)
	}
	ret := strings.TrimSpace(secret.String())
	if ret == "" {
		return "", fmt.Errorf("%w: empty secret at %v", ErrMissing, URL)
	}
	return ret, nil
}

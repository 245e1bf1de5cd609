package registry

import (
	"context"
	"fmt"
	"os"

	getter "github.com/hashicorp/go-getter"
)

// EnsureBaseline downloads the baseline artifact when it is missing and a
// download URL is configured. It reports whether a download happened.
func (r *Registry) EnsureBaseline(ctx context.Context) (bool, error) {
	if r.exists(r.baseline) || r.baseURL == "" {
		return false, nil
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create model directory: %w", err)
	}

	dst, err := r.Resolve(r.baseline)
	if err != nil {
		return false, err
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  r.baseURL,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		os.Remove(dst)
		return false, fmt.Errorf("failed to download baseline model from %s: %w", r.baseURL, err)
	}

	return true, nil
}

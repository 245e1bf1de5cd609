// Package registry decides which model artifacts can be offered for selection.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"detectserver/internal/config"
)

// ErrInvalidIdentifier is returned for identifiers that are not a bare file name.
var ErrInvalidIdentifier = errors.New("invalid model identifier")

// Registry resolves model identifiers to artifact paths inside a single directory.
type Registry struct {
	dir       string
	baseline  string
	primary   string
	secondary string
	baseURL   string
}

// New creates a Registry from the model settings in cfg.
func New(cfg *config.Config) *Registry {
	return &Registry{
		dir:       cfg.ModelDirectory,
		baseline:  cfg.BaselineModel,
		primary:   cfg.PrimaryCustomModel,
		secondary: cfg.SecondaryCustomModel,
		baseURL:   cfg.BaselineModelURL,
	}
}

// Baseline returns the identifier that is always offered.
func (r *Registry) Baseline() string {
	return r.baseline
}

// ListAvailableModels returns the baseline identifier followed by at most one
// custom identifier. The secondary custom artifact is only considered when the
// primary one is absent.
func (r *Registry) ListAvailableModels() []string {
	models := []string{r.baseline}

	if r.primary != "" && r.exists(r.primary) {
		models = append(models, r.primary)
	} else if r.secondary != "" && r.exists(r.secondary) {
		models = append(models, r.secondary)
	}

	return models
}

// Validate reports whether id is currently selectable.
func (r *Registry) Validate(id string) bool {
	for _, m := range r.ListAvailableModels() {
		if m == id {
			return true
		}
	}
	return false
}

// IsCustom reports whether id names one of the custom-trained artifacts.
func (r *Registry) IsCustom(id string) bool {
	return id != r.baseline && (id == r.primary || id == r.secondary)
}

// Resolve maps an identifier to its artifact path. It does not check that the
// artifact exists; loading is the authoritative check.
func (r *Registry) Resolve(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return filepath.Join(r.dir, id), nil
}

func (r *Registry) exists(id string) bool {
	path, err := r.Resolve(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

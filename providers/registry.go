package providers

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ErrUnknownProvider is returned by Registry.Get for ids that were never
// registered. Callers match it with errors.Is.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry maps provider ids to their configurations. The set of providers
// is fixed at construction; only secret resolution mutates internal state,
// and that is guarded for concurrent use.
type Registry struct {
	configs map[string]*Config

	mu      sync.Mutex
	secrets map[string]string // provider id -> resolved secret
}

// NewRegistry builds a registry from the given configurations. Every config
// is validated; duplicate ids are rejected. Client secrets are not resolved
// here.
func NewRegistry(configs ...*Config) (*Registry, error) {
	r := &Registry{
		configs: make(map[string]*Config, len(configs)),
		secrets: make(map[string]string),
	}
	for _, cfg := range configs {
		if cfg == nil {
			return nil, fmt.Errorf("nil provider config")
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid provider config: %w", err)
		}
		if _, exists := r.configs[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", cfg.ID)
		}
		r.configs[cfg.ID] = cfg
	}
	return r, nil
}

// Get returns the configuration for the given provider id. The returned
// config must be treated as read-only.
func (r *Registry) Get(id string) (*Config, error) {
	cfg, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return cfg, nil
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveSecret resolves the client secret for a provider, reading its
// environment variable on first use and caching the result. A missing secret
// is a configuration error naming the variable, surfaced only when the
// provider is actually exercised.
func (r *Registry) ResolveSecret(id string) (string, error) {
	cfg, err := r.Get(id)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if secret, ok := r.secrets[id]; ok {
		return secret, nil
	}

	secret := cfg.ClientSecret.Value
	if secret == "" && cfg.ClientSecret.Env != "" {
		secret = os.Getenv(cfg.ClientSecret.Env)
	}
	if secret == "" {
		return "", fmt.Errorf("provider %s: client secret is not configured (set %s)", id, cfg.ClientSecret.Env)
	}

	r.secrets[id] = secret
	return secret, nil
}

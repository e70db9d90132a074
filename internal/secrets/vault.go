package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// VaultResolver resolves vault(path#key) references from a Vault KV v2
// store. Resolved values are cached briefly so repeated config loads
// do not hammer the server. When no key is given, "value" is used.
type VaultResolver struct {
	address   string
	token     string
	mountPath string
	cacheTTL  time.Duration

	client *http.Client
	mu     sync.RWMutex
	cache  map[string]vaultEntry
}

type vaultEntry struct {
	value   string
	expires time.Time
}

// NewVaultResolver creates a resolver against the given Vault server.
func NewVaultResolver(address, token string) *VaultResolver {
	return &VaultResolver{
		address:   strings.TrimRight(address, "/"),
		token:     token,
		mountPath: "secret",
		cacheTTL:  5 * time.Minute,
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     make(map[string]vaultEntry),
	}
}

// Resolve fetches the secret behind a vault() reference.
func (v *VaultResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if !isRef(ref, "vault") {
		return "", fmt.Errorf("unsupported secret reference %q (expected vault(path#key))", ref)
	}
	path, key := inner(ref, "vault"), "value"
	if i := strings.LastIndex(path, "#"); i >= 0 {
		path, key = path[:i], path[i+1:]
	}
	cacheKey := path + "#" + key

	v.mu.RLock()
	entry, ok := v.cache[cacheKey]
	v.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.value, nil
	}

	url := fmt.Sprintf("%s/v1/%s/data/%s", v.address, v.mountPath, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", v.token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vault returned status %d for %s", resp.StatusCode, path)
	}

	var body struct {
		Data struct {
			Data map[string]string `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode vault response: %w", err)
	}
	value, ok := body.Data.Data[key]
	if !ok {
		return "", fmt.Errorf("vault secret %s has no key %q", path, key)
	}

	v.mu.Lock()
	v.cache[cacheKey] = vaultEntry{value: value, expires: time.Now().Add(v.cacheTTL)}
	v.mu.Unlock()
	return value, nil
}

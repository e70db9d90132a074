// Package secrets resolves credential references in configuration.
// A reference is env(VAR), file(PATH), vault(path#key) or a literal
// value used as-is.
package secrets

import (
	"context"
	"errors"
	"strings"
)

// Resolver resolves one reference form to its value.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Chain routes a reference to the resolver matching its form. The zero
// value handles env(), file() and literals; AttachVault enables
// vault() references.
type Chain struct {
	env   EnvResolver
	file  FileResolver
	vault *VaultResolver
}

// AttachVault enables vault() references through the given resolver.
func (c *Chain) AttachVault(v *VaultResolver) { c.vault = v }

// Resolve returns the value behind ref. Unrecognized forms are treated
// as literals.
func (c *Chain) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case isRef(ref, "env"):
		return c.env.Resolve(ctx, ref)
	case isRef(ref, "file"):
		return c.file.Resolve(ctx, ref)
	case isRef(ref, "vault"):
		if c.vault == nil {
			return "", errors.New("vault() reference but no vault configured")
		}
		return c.vault.Resolve(ctx, ref)
	default:
		return ref, nil
	}
}

// isRef reports whether ref has the form name(...).
func isRef(ref, name string) bool {
	return strings.HasPrefix(ref, name+"(") && strings.HasSuffix(ref, ")")
}

// inner extracts the payload of a name(...) reference.
func inner(ref, name string) string {
	return ref[len(name)+1 : len(ref)-1]
}

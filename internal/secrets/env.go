package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvResolver resolves env(VAR_NAME) references from the process
// environment.
type EnvResolver struct{}

// Resolve looks up an env() reference. An unset variable is an error;
// an empty one is returned as-is.
func (EnvResolver) Resolve(_ context.Context, ref string) (string, error) {
	if !isRef(ref, "env") {
		return "", fmt.Errorf("unsupported secret reference %q (expected env(VAR_NAME))", ref)
	}
	name := inner(ref, "env")
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %q not set", name)
	}
	return value, nil
}

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileResolver resolves file(PATH) references by reading the file's
// contents. A single trailing newline is stripped so `echo token >
// /path` round-trips.
type FileResolver struct{}

// Resolve reads the file behind a file() reference.
func (FileResolver) Resolve(_ context.Context, ref string) (string, error) {
	if !isRef(ref, "file") {
		return "", fmt.Errorf("unsupported secret reference %q (expected file(PATH))", ref)
	}
	path := inner(ref, "file")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

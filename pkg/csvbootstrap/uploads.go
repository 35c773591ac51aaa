package csvbootstrap

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// WriteUpload decodes base64 content and persists it under dir/fileName.
// It returns the path written and the decoded byte count, so callers
// can compare against a declared size and warn on mismatch rather than
// fail outright.
func WriteUpload(dir, fileName, base64Content string) (path string, size int64, err error) {
	raw, err := base64.StdEncoding.DecodeString(base64Content)
	if err != nil {
		return "", 0, fmt.Errorf("csvbootstrap: decoding base64 content for %s: %w", fileName, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("csvbootstrap: creating uploads dir %s: %w", dir, err)
	}
	path = filepath.Join(dir, filepath.Base(fileName))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", 0, fmt.Errorf("csvbootstrap: writing upload %s: %w", path, err)
	}
	return path, int64(len(raw)), nil
}

// DecodeChunk decodes one chunk's base64 content.
func DecodeChunk(base64Content string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Content)
	if err != nil {
		return nil, fmt.Errorf("csvbootstrap: decoding base64 chunk: %w", err)
	}
	return raw, nil
}

// WriteAssembled persists a fully reassembled chunked upload to disk.
func WriteAssembled(dir, fileName string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("csvbootstrap: creating uploads dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(fileName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("csvbootstrap: writing assembled upload %s: %w", path, err)
	}
	return path, nil
}

// Cleanup removes the uploaded source file after import.
func Cleanup(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("csvbootstrap: removing %s: %w", path, err)
	}
	return nil
}

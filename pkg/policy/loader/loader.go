package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"mercator-hq/policyd/pkg/policy"
)

// DefaultMaxFileSize is the largest policy file Load accepts by default.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Config contains configuration for the Loader.
type Config struct {
	// MaxFileSize is the maximum number of bytes read from a policy file.
	// Zero means no limit.
	// Default: 10MB
	MaxFileSize int64
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Loader validates policy file paths and decodes their contents.
type Loader struct {
	config *Config

	// file system access, replaced in tests
	stat func(name string) (fs.FileInfo, error)
	open func(name string) (io.ReadCloser, error)
}

// New creates a loader. A nil config uses DefaultConfig.
func New(config *Config) *Loader {
	if config == nil {
		config = DefaultConfig()
	}
	return &Loader{
		config: config,
		stat:   os.Stat,
		open: func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		},
	}
}

// Load reads the policy file at path and returns its policies in file order.
// Any failure is returned as a *policy.Error.
func (l *Loader) Load(path string) ([]policy.Policy, error) {
	if _, err := l.stat(path); err != nil {
		return nil, &policy.Error{
			Kind:    policy.KindNotFound,
			Path:    path,
			Message: "file does not exist",
			Cause:   err,
		}
	}

	if ext := filepath.Ext(path); ext != ".json" {
		return nil, &policy.Error{
			Kind:    policy.KindUnsupportedFormat,
			Path:    path,
			Message: fmt.Sprintf("file is not a json file (extension %q)", ext),
		}
	}

	f, err := l.open(path)
	if err != nil {
		return nil, &policy.Error{
			Kind:    policy.KindOpenFailure,
			Path:    path,
			Message: "failed to open file",
			Cause:   err,
		}
	}
	defer f.Close()

	data, err := l.readAll(f)
	if err != nil {
		return nil, &policy.Error{
			Kind:    policy.KindReadFailure,
			Path:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	policies, err := decode(data)
	if err != nil {
		return nil, &policy.Error{
			Kind:    policy.KindDecodeFailure,
			Path:    path,
			Message: "failed to decode JSON",
			Cause:   err,
		}
	}

	return policies, nil
}

// readAll reads r completely, enforcing the size limit and UTF-8 encoding.
func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	limit := l.config.MaxFileSize
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", limit)
	}

	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file contains invalid UTF-8 encoding")
	}

	return data, nil
}

// DecodePolicies decodes a JSON array of policies. Every element must carry a
// non-empty id. It is the decoding step of
// Load without any file system access. Failures are returned as a
// *policy.Error of kind policy.KindDecodeFailure.
func DecodePolicies(data []byte) ([]policy.Policy, error) {
	policies, err := decode(data)
	if err != nil {
		return nil, &policy.Error{
			Kind:    policy.KindDecodeFailure,
			Message: "failed to decode JSON",
			Cause:   err,
		}
	}
	return policies, nil
}

func decode(data []byte) ([]policy.Policy, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document, expected a JSON array of policies")
	}
	if trimmed[0] != '[' {
		// Let the decoder report syntax errors; only name the shape mismatch
		// for otherwise valid JSON.
		if !json.Valid(trimmed) {
			var v any
			return nil, json.Unmarshal(trimmed, &v)
		}
		return nil, fmt.Errorf("expected a JSON array of policies at the top level")
	}

	var raw []*policy.Policy
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}

	policies := make([]policy.Policy, len(raw))
	for i, p := range raw {
		if p == nil {
			return nil, fmt.Errorf("element %d is null, expected a policy object", i)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("element %d has no id", i)
		}
		policies[i] = *p
	}

	return policies, nil
}

package scope

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a scope Policy from a YAML file and compiles its
// patterns. A missing file yields a nil Policy (no scope declared), matching
// the default-allow contract for unscoped work.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scope policy %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse scope policy %s: %w", path, err)
	}
	if err := p.Compile(); err != nil {
		return nil, fmt.Errorf("compile scope policy %s: %w", path, err)
	}
	return &p, nil
}

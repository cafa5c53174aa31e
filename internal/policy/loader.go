package policy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Loader reads the consent policy file
type Loader struct {
	filePath string
}

// NewLoader creates a policy loader. An empty path yields the default policy.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the configured file path
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads, expands and validates the policy file.
// Fields absent from the file keep their default value.
func (l *Loader) Load() (*Policy, error) {
	p := Default()
	if l.filePath == "" {
		return p, nil
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	data = expandEnv(data)

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	return p, nil
}

// expandEnv replaces ${VAR} references with environment values.
// Example: property_id: ${GA_PROPERTY} -> property_id: G-ABC123
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses a workflow definition from YAML and validates it.
// Guards are Go functions and cannot be expressed in YAML; definitions
// that need guards are assembled with the Builder instead.
func ParseYAML(data []byte) (*Definition, error) {
	def := Definition{
		Quantum: DefaultQuantumConfig(),
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing workflow YAML: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	return &def, nil
}

package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// applyFile overlays the YAML file onto the current values. Unset
// fields in the file keep their existing values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

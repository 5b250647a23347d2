// control/yamlconfig.go
// Author: momentics <momentics@gmail.com>
//
// Loads a ConfigStore's initial values from a YAML document, the format the
// CLI's "config" subcommands read from and dump to on disk.

package control

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAMLFile parses path as YAML into a map and merges it into cs,
// triggering any registered reload hooks.
func LoadYAMLFile(cs *ConfigStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := make(map[string]any)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cs.SetConfig(cfg)
	return nil
}

// DumpYAML renders the store's current snapshot as a YAML document.
func DumpYAML(cs *ConfigStore) ([]byte, error) {
	return yaml.Marshal(cs.GetSnapshot())
}

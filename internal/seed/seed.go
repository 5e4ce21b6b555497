// Package seed loads the static records the table starts with.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/kbview/internal/models"
)

//go:embed records.yaml
var defaultRecords []byte

type file struct {
	Records []models.RecordFields `yaml:"records"`
}

// Load returns the seed records from path, or the embedded defaults when
// path is empty. Every entry must carry all required fields.
func Load(path string) ([]models.RecordFields, error) {
	data := defaultRecords
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("seed: read %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse decodes a seed document.
func Parse(data []byte) ([]models.RecordFields, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	for i, r := range f.Records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("seed: record %d: %w", i, err)
		}
	}
	return f.Records, nil
}

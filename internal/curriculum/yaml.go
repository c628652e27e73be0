package curriculum

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a curriculum document
func ParseYAML(data []byte) (*Curriculum, error) {
	var c Curriculum
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurriculum, err)
	}
	return &c, nil
}

// MarshalYAML encodes a curriculum document
func MarshalYAML(c *Curriculum) ([]byte, error) {
	return yaml.Marshal(c)
}

func readYAML(config ImportConfig) (*Curriculum, error) {
	data, err := os.ReadFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curriculum: %w", err)
	}
	return ParseYAML(data)
}

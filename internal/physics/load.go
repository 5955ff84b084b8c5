package physics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// maxSceneFileSize bounds scene files read from disk.
const maxSceneFileSize = 1 << 20

// ParseScene decodes a YAML scene description and builds it.
func ParseScene(data []byte) (*Scene, error) {
	var spec SceneSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	return spec.Build()
}

// LoadScene reads and builds a YAML scene file.
func LoadScene(path string) (*Scene, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat scene %s: %w", path, err)
	}
	if info.Size() > maxSceneFileSize {
		return nil, fmt.Errorf("scene %s too large: %d bytes (max %d)", path, info.Size(), maxSceneFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	return ParseScene(data)
}

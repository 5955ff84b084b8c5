package sim

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/physics"
)

const maxScenarioFileSize = 1 << 20

// StartSpec places the rover at the start of a run.
type StartSpec struct {
	Position   [3]float64 `yaml:"position"`
	HeadingDeg float64    `yaml:"heading_deg"`
}

// ScenarioFile is the YAML layout of a scenario: scene geometry, a start
// pose and an optional scripted input sequence.
type ScenarioFile struct {
	Name   string             `yaml:"name"`
	Start  StartSpec          `yaml:"start"`
	Scene  physics.SceneSpec  `yaml:"scene"`
	Script []drive.ScriptStep `yaml:"script"`
}

// Scenario is a built ScenarioFile.
type Scenario struct {
	Name    string
	Start   r3.Vec
	Heading float64 // radians
	Scene   *physics.Scene
	Script  *drive.Script
}

// Build validates the file and constructs the scene and script.
func (f ScenarioFile) Build() (*Scenario, error) {
	scene, err := f.Scene.Build()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", f.Name, err)
	}
	script, err := drive.NewScript(f.Script)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", f.Name, err)
	}
	p := f.Start.Position
	return &Scenario{
		Name:    f.Name,
		Start:   r3.Vec{X: p[0], Y: p[1], Z: p[2]},
		Heading: f.Start.HeadingDeg * math.Pi / 180,
		Scene:   scene,
		Script:  script,
	}, nil
}

// ParseScenario decodes and builds a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var f ScenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return f.Build()
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario: %w", err)
	}
	if info.Size() > maxScenarioFileSize {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", info.Size(), maxScenarioFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// OpenGround is a scenario with only a ground plane and no script.
func OpenGround() *Scenario {
	return &Scenario{
		Name:   "open-ground",
		Scene:  physics.NewScene("open-ground", physics.Plane{Normal: r3.Vec{Y: 1}}),
		Script: &drive.Script{},
	}
}

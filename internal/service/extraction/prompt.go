package extraction

import (
	"embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var promptFiles embed.FS

// Prompt is the instruction set sent with every extraction request.
type Prompt struct {
	Name         string `yaml:"name"`
	Version      int    `yaml:"version"`
	System       string `yaml:"system"`
	Instruction  string `yaml:"instruction"`
	FallbackDate string `yaml:"fallback_date"`
	MaxTags      int    `yaml:"max_tags"`
}

// LoadPrompt reads an embedded prompt by name.
func LoadPrompt(name string) (*Prompt, error) {
	filename := fmt.Sprintf("prompts/%s.yaml", name)
	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}
	if p.System == "" || p.Instruction == "" {
		return nil, errors.New("prompt " + name + " is missing system or instruction text")
	}
	return &p, nil
}

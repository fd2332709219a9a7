package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	api "adaptrial/pkg/adaptrial"
)

// designFile is the YAML document the simulate and benchmark commands load:
// the dose-finding design plus an optional simulation scenario.
type designFile struct {
	Design   api.Design   `yaml:"design"`
	Scenario api.Scenario `yaml:"scenario"`
}

func loadDesignFile(path string) (designFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return designFile{}, fmt.Errorf("load design: %w", err)
	}

	var file designFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return designFile{}, fmt.Errorf("parse design: %w", err)
	}
	if len(file.Design.Skeletons) == 0 {
		return designFile{}, fmt.Errorf("design %s has no skeletons", path)
	}
	if len(file.Design.PriorToxicities) == 0 {
		return designFile{}, fmt.Errorf("design %s has no prior toxicities", path)
	}
	return file, nil
}

package registry

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"contentfactory/internal/config"
)

//go:embed workers.yaml
var defaultManifest []byte

type manifestFile struct {
	Workers   []manifestWorker    `yaml:"workers"`
	Pipelines map[string][]string `yaml:"pipelines"`
}

type manifestWorker struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Requires    []string `yaml:"requires"`
	Services    []string `yaml:"services"`
	Approval    bool     `yaml:"approval"`
	Schedule    struct {
		OnDemand bool     `yaml:"on_demand"`
		Days     []string `yaml:"days"`
	} `yaml:"schedule"`
}

func parseManifest(data []byte) (manifestFile, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return manifestFile{}, fmt.Errorf("parse worker manifest: %w", err)
	}
	return mf, nil
}

func (w manifestWorker) definition() (Definition, error) {
	days, err := config.ParseWeekdays(w.Schedule.Days)
	if err != nil {
		return Definition{}, fmt.Errorf("worker %q schedule: %w", w.ID, err)
	}
	return Definition{
		ID:          strings.TrimSpace(w.ID),
		Description: strings.TrimSpace(w.Description),
		Requires:    w.Requires,
		Services:    w.Services,
		Approval:    w.Approval,
		Schedule:    Schedule{OnDemand: w.Schedule.OnDemand, Days: days},
	}, nil
}

// Load parses a manifest into a fresh registry.
func Load(data []byte) (*Registry, error) {
	mf, err := parseManifest(data)
	if err != nil {
		return nil, err
	}
	reg := New()
	for _, w := range mf.Workers {
		def, err := w.definition()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	for name, workers := range mf.Pipelines {
		reg.SetPipeline(name, workers)
	}
	return reg, reg.Validate()
}

// Default returns the registry described by the embedded manifest.
func Default() (*Registry, error) {
	return Load(defaultManifest)
}

// FromConfig loads the embedded manifest and applies the override file named
// by paths.workers_manifest, when set. Override entries replace definitions
// with the same id and append new ones; override pipelines replace by name.
func FromConfig(cfg *config.Config) (*Registry, error) {
	reg, err := Default()
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(cfg.Paths.WorkersManifest)
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read worker manifest %s: %w", path, err)
	}
	mf, err := parseManifest(data)
	if err != nil {
		return nil, err
	}
	for _, w := range mf.Workers {
		def, err := w.definition()
		if err != nil {
			return nil, err
		}
		if def.ID == "" {
			return nil, fmt.Errorf("worker manifest %s: worker id must not be empty", path)
		}
		reg.replace(def)
	}
	for name, workers := range mf.Pipelines {
		reg.SetPipeline(name, workers)
	}
	return reg, reg.Validate()
}

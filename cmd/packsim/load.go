package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeusync/packwork/internal/core/world"
	"github.com/zeusync/packwork/internal/extension"
)

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func loadConfig(path string) (extension.Config, error) {
	if path == "" {
		return extension.DefaultConfig(), nil
	}
	var cfg extension.Config
	err := withFile(path, func(r io.Reader) (err error) {
		if isJSON(path) {
			cfg, err = extension.LoadJSON(r)
		} else {
			cfg, err = extension.LoadYAML(r)
		}
		return err
	})
	return cfg, err
}

func loadScenario(path string) (*world.Scenario, error) {
	if path == "" {
		return nil, fmt.Errorf("no scenario given")
	}
	var sc *world.Scenario
	err := withFile(path, func(r io.Reader) (err error) {
		if isJSON(path) {
			sc, err = world.LoadScenarioJSON(r)
		} else {
			sc, err = world.LoadScenarioYAML(r)
		}
		return err
	})
	return sc, err
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err = fn(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

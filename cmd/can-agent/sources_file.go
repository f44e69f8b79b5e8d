package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kfile "github.com/knadh/koanf/providers/file"
	kfn "github.com/knadh/koanf/v2"

	"github.com/kstaniek/go-can-telemetry/internal/source"
)

// sourceFile is the on-disk list of data source configurations. Only the
// first entry is used by the single CAN source this agent runs.
type sourceFile struct {
	DataSources []sourceEntry `yaml:"dataSources" validate:"required,min=1,dive"`
}

type sourceEntry struct {
	TransportProperties map[string]string `yaml:"transportProperties" validate:"required"`
	MaxNumberOfMessages int               `yaml:"maxNumberOfMessages" validate:"min=1"`
}

// loadSourceFile reads a YAML or JSON data source file. Property values may be
// written as numbers; they are converted to strings like the flag path.
func loadSourceFile(path string) ([]source.DataSourceConfig, error) {
	var parser kfn.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		return nil, fmt.Errorf("unsupported config extension %q (use .yaml, .yml or .json)", ext)
	}
	k := kfn.New(".")
	if err := k.Load(kfile.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	var f sourceFile
	if err := k.UnmarshalWithConf("", &f, kfn.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	out := make([]source.DataSourceConfig, 0, len(f.DataSources))
	for _, e := range f.DataSources {
		out = append(out, source.DataSourceConfig{
			TransportProperties: e.TransportProperties,
			MaxNumberOfMessages: e.MaxNumberOfMessages,
		})
	}
	return out, nil
}

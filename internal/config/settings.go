package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/rain-features/internal/features"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadSettings reads pipeline settings from a YAML file. Keys absent from
// the file keep their defaults. An empty path returns the defaults.
func LoadSettings(path string) (features.Settings, error) {
	if path == "" {
		return features.DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return features.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes YAML settings over the defaults and validates them.
// Unknown keys are rejected so a misspelled option is not silently ignored.
func ParseSettings(data []byte) (features.Settings, error) {
	s := features.DefaultSettings()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return features.Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return features.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

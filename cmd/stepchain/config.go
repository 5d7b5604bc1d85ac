package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// config holds the defaults of the gratuity command. Flags given on the
// command line take precedence.
type config struct {
	Currency string        `yaml:"currency"`
	Symbol   string        `yaml:"symbol"`
	Tax      float64       `yaml:"tax"`
	Gratuity float64       `yaml:"gratuity"`
	Timeout  time.Duration `yaml:"timeout"`
}

func defaultConfig() config {
	return config{
		Currency: "USD",
		Symbol:   "$",
		Tax:      0.0825,
		Gratuity: 0.25,
	}
}

// loadConfig overlays the YAML file at path on the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "unable to read config %s", path)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "unable to parse config %s", path)
	}

	return cfg, nil
}

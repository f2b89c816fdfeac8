// Copyright 2024 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emitter

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/common/model"
	yaml "gopkg.in/yaml.v2"
)

// Config bounds the random pause between counter increments.
type Config struct {
	MinInterval model.Duration `yaml:"min_interval"`
	MaxInterval model.Duration `yaml:"max_interval"`
}

// DefaultConfig sleeps between one and twenty seconds per increment.
var DefaultConfig = Config{
	MinInterval: model.Duration(1 * time.Second),
	MaxInterval: model.Duration(20 * time.Second),
}

// UnmarshalYAML implements yaml.Unmarshaler, applying defaults for fields
// absent from the document.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*c = DefaultConfig
	type plain Config
	return unmarshal((*plain)(c))
}

// Validate checks that the interval range is usable.
func (c *Config) Validate() error {
	if c.MinInterval <= 0 {
		return fmt.Errorf("min_interval must be positive, got %s", c.MinInterval)
	}
	if c.MaxInterval < c.MinInterval {
		return fmt.Errorf("max_interval %s must not be smaller than min_interval %s", c.MaxInterval, c.MinInterval)
	}
	return nil
}

// LoadFile reads and validates an emitter configuration file. Unknown fields
// are an error.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, fmt.Errorf("parsing YAML file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Copyright 2026 The Rift Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package xform

import (
	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/riftdb/rift/pkg/sql/opt"
)

// Config carries the operator-tunable settings of a search session. The
// zero value is a valid default configuration.
type Config struct {
	// ExcludedRules lists rule names that are administratively excluded:
	// their matches are found but never fired.
	ExcludedRules []string `toml:"excluded_rules"`

	// TraceMatches enables per-call trace logging of bindings and generated
	// expressions.
	TraceMatches bool `toml:"trace_matches"`
}

// LoadConfig reads a Config from a TOML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "loading search config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Newf("unknown key %q in search config %s", undecoded[0], path)
	}
	return cfg, nil
}

func (c *Config) excluded() map[opt.RuleName]struct{} {
	if len(c.ExcludedRules) == 0 {
		return nil
	}
	out := make(map[opt.RuleName]struct{}, len(c.ExcludedRules))
	for _, name := range c.ExcludedRules {
		out[opt.RuleName(name)] = struct{}{}
	}
	return out
}

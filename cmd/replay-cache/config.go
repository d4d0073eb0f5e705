package main

import (
	"os"
	"time"

	"github.com/replay-cache/replay-cache/policy"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Origin     string           `yaml:"origin"`
	Host       string           `yaml:"host"`
	Private    bool             `yaml:"private"`
	Heuristics ConfigHeuristics `yaml:"heuristics"`
	Store      ConfigStore      `yaml:"store"`
}

type ConfigHeuristics struct {
	Enabled                bool    `yaml:"enabled"`
	Coefficient            float64 `yaml:"coefficient"`
	DefaultLifetimeSeconds int     `yaml:"defaultLifetimeSeconds"`
}

type ConfigStore struct {
	Provider  string `yaml:"provider"`
	DBFile    string `yaml:"dbFile"`
	RedisAddr string `yaml:"redisAddr"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// policyConfig translates the file-level knobs into a caching policy.
func (c Config) policyConfig() policy.Config {
	pc := policy.DefaultConfig()
	pc.Shared = !c.Private
	pc.HeuristicCachingEnabled = c.Heuristics.Enabled
	if c.Heuristics.Coefficient != 0 {
		pc.HeuristicCoefficient = c.Heuristics.Coefficient
	}
	if c.Heuristics.DefaultLifetimeSeconds != 0 {
		pc.HeuristicDefaultLifetime = time.Duration(c.Heuristics.DefaultLifetimeSeconds) * time.Second
	}
	return pc
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// RoomConfig represents a single room seeded from rooms.yaml.
type RoomConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
}

// SquadConfig represents a squad seeded from rooms.yaml.
type SquadConfig struct {
	Name string `yaml:"name"`
}

// RoomsConfig is the root configuration for rooms.yaml.
type RoomsConfig struct {
	Rooms  []RoomConfig  `yaml:"rooms"`
	Squads []SquadConfig `yaml:"squads"`
	Admins []string      `yaml:"admins"`
}

// LoadRoomsConfig loads and validates rooms configuration from YAML file.
func LoadRoomsConfig(path string) (*RoomsConfig, error) {
	if path == "" {
		path = "configs/rooms.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}

	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rooms config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *RoomsConfig) Validate() error {
	names := make(map[string]bool)
	for i, r := range c.Rooms {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("room[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("room[%d]: duplicate name '%s'", i, name)
		}
		names[name] = true

		if r.Color != "" && !colorPattern.MatchString(r.Color) {
			return fmt.Errorf("room[%d]: invalid color '%s', expected #RRGGBB", i, r.Color)
		}
	}

	squads := make(map[string]bool)
	for i, s := range c.Squads {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("squad[%d]: name is required", i)
		}
		if squads[name] {
			return fmt.Errorf("squad[%d]: duplicate name '%s'", i, name)
		}
		squads[name] = true
	}

	for i, a := range c.Admins {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("admins[%d]: user id is required", i)
		}
	}
	return nil
}

// String returns a summary of the configuration.
func (c *RoomsConfig) String() string {
	return fmt.Sprintf("RoomsConfig: %d rooms, %d squads, %d admins", len(c.Rooms), len(c.Squads), len(c.Admins))
}

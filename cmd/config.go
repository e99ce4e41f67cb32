package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LogConfig configures the default logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// RegistryConfig is the "registry" section of the decoded configuration.
// The persistent flags in root.go bind top-level keys (nand, sdmc, ...), not
// these nested keys, so flag values do not populate it.
type RegistryConfig struct {
	NAND       string         `mapstructure:"nand"`
	SDMC       string         `mapstructure:"sdmc"`
	DB         DatabaseConfig `mapstructure:"db"`
	PresetKeys string         `mapstructure:"preset_keys"`
}

// DatabaseConfig selects the registry's durability side-index driver,
// matching the teacher's sqlite-or-postgres DatabaseConfig.
type DatabaseConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// SeedEntry is one program-id/seed pair for seed-crypto NCCH content,
// matching FileSys::GetSeed's backing seed database.
type SeedEntry struct {
	ProgramID string `mapstructure:"program_id"`
	Seed      string `mapstructure:"seed"`
}

// TitlecoreConfig is the typed root of viper's configuration, matching the
// teacher's FDOServerConfig decode-with-mapstructure pattern. No config file
// is read, so only values set in viper reach it.
type TitlecoreConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Registry RegistryConfig `mapstructure:"registry"`
	Seeds    []SeedEntry    `mapstructure:"seeds"`
}

// loadTitlecoreConfig decodes viper's current configuration (the bound
// flags; no config file is loaded) into a typed TitlecoreConfig.
func loadTitlecoreConfig() (*TitlecoreConfig, error) {
	var cfg TitlecoreConfig
	if err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = false
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// seedLookup builds a program-id -> seed function from the decoded seed
// entries, used as the ncch.SeedLookup passed to the content crypto sink.
func (c *TitlecoreConfig) seedLookup() (func(programID uint64) ([16]byte, bool), error) {
	table := make(map[uint64][16]byte, len(c.Seeds))
	for _, e := range c.Seeds {
		programID, err := strconv.ParseUint(e.ProgramID, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("seed entry %q: bad program-id: %w", e.ProgramID, err)
		}
		raw, err := hex.DecodeString(e.Seed)
		if err != nil || len(raw) != 16 {
			return nil, fmt.Errorf("seed entry %q: seed must be 32 hex characters", e.ProgramID)
		}
		var seed [16]byte
		copy(seed[:], raw)
		table[programID] = seed
	}
	return func(programID uint64) ([16]byte, bool) {
		seed, ok := table[programID]
		return seed, ok
	}, nil
}

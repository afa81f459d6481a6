/* Copyright 2025 Garahe Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config provides the garahe configuration file
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Backup frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// BackupConfig holds the emergency backup schedule
type BackupConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Frequency string `yaml:"frequency"`
	Time      string `yaml:"time"`
}

// Config holds garahe configuration
type Config struct {
	APIEndpoint string       `yaml:"apiEndpoint"`
	BranchID    int64        `yaml:"branchId"`
	Backup      BackupConfig `yaml:"backup"`
}

// Default returns the default configuration for a fresh install
func Default(apiEndpoint string) Config {
	return Config{
		APIEndpoint: apiEndpoint,
		BranchID:    1,
		Backup: BackupConfig{
			Enabled:   true,
			Frequency: FrequencyDaily,
			Time:      "02:00",
		},
	}
}

// ParseTime parses the configured HH:mm time of day into hour and minute
func (b BackupConfig) ParseTime() (int, int, error) {
	parts := strings.Split(b.Time, ":")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("invalid backup time '%s'", b.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parsing backup hour '%s'", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parsing backup minute '%s'", parts[1])
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.Errorf("backup time '%s' out of range", b.Time)
	}

	return hour, minute, nil
}

// Validate checks the configuration for invalid values
func (c Config) Validate() error {
	if c.APIEndpoint == "" {
		return errors.New("apiEndpoint is empty")
	}
	if c.BranchID == 0 {
		return errors.New("branchId is not set")
	}

	switch c.Backup.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return errors.Errorf("unknown backup frequency '%s'", c.Backup.Frequency)
	}

	if _, _, err := c.Backup.ParseTime(); err != nil {
		return errors.Wrap(err, "validating backup time")
	}

	return nil
}

// GetPath returns the path to the garahe config file
func GetPath(ctx context.GaraheCtx) string {
	return fmt.Sprintf("%s/%s/%s", ctx.Paths.Config, consts.GaraheDirName, consts.ConfigFilename)
}

// Read reads the config file
func Read(ctx context.GaraheCtx) (Config, error) {
	var ret Config

	configPath := GetPath(ctx)
	b, err := os.ReadFile(configPath)
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	err = yaml.Unmarshal(b, &ret)
	if err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}

	return ret, nil
}

// Write writes the config to the config file
func Write(ctx context.GaraheCtx, cf Config) error {
	path := GetPath(ctx)

	b, err := yaml.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}

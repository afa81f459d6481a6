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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/garahe/garahe/pkg/assert"
	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
)

func TestParseTime(t *testing.T) {
	testCases := []struct {
		time      string
		hour      int
		minute    int
		expectErr bool
	}{
		{time: "02:00", hour: 2, minute: 0},
		{time: "23:59", hour: 23, minute: 59},
		{time: "0:5", hour: 0, minute: 5},
		{time: "24:00", expectErr: true},
		{time: "12:60", expectErr: true},
		{time: "noon", expectErr: true},
		{time: "12", expectErr: true},
		{time: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("for input %s", tc.time), func(t *testing.T) {
			hour, minute, err := BackupConfig{Time: tc.time}.ParseTime()
			if tc.expectErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}

			if err != nil {
				t.Fatal(err, "parsing time")
			}
			assert.Equal(t, hour, tc.hour, "hour mismatch")
			assert.Equal(t, minute, tc.minute, "minute mismatch")
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Default("https://garahe.example.com/api")
	if err := valid.Validate(); err != nil {
		t.Fatal(err, "validating default config")
	}

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{
			name:   "empty endpoint",
			mutate: func(c *Config) { c.APIEndpoint = "" },
		},
		{
			name:   "missing branch id",
			mutate: func(c *Config) { c.BranchID = 0 },
		},
		{
			name:   "unknown frequency",
			mutate: func(c *Config) { c.Backup.Frequency = "hourly" },
		},
		{
			name:   "bad backup time",
			mutate: func(c *Config) { c.Backup.Time = "25:00" },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cf := Default("https://garahe.example.com/api")
			tc.mutate(&cf)

			if err := cf.Validate(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	configDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(configDir, consts.GaraheDirName), 0755); err != nil {
		t.Fatal(err, "creating config dir")
	}

	ctx := context.GaraheCtx{
		Paths: context.Paths{Config: configDir},
	}

	cf := Config{
		APIEndpoint: "https://garahe.example.com/api",
		BranchID:    3,
		Backup: BackupConfig{
			Enabled:   true,
			Frequency: FrequencyWeekly,
			Time:      "23:30",
		},
	}
	if err := Write(ctx, cf); err != nil {
		t.Fatal(err, "writing config")
	}

	got, err := Read(ctx)
	if err != nil {
		t.Fatal(err, "reading config")
	}
	assert.DeepEqual(t, got, cf, "config mismatch")
}

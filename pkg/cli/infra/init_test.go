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

package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/garahe/garahe/pkg/assert"
	"github.com/garahe/garahe/pkg/cli/config"
	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
)

func TestGetDBPath(t *testing.T) {
	paths := context.Paths{Data: "/home/maria/.local/share"}

	got := getDBPath(paths, "")
	assert.Equal(t, got, "/home/maria/.local/share/garahe/garahe.db", "default path mismatch")

	got = getDBPath(paths, "./custom.db")
	assert.Equal(t, got, "./custom.db", "custom path mismatch")
}

func TestInitConfigFile(t *testing.T) {
	configDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(configDir, consts.GaraheDirName), 0755); err != nil {
		t.Fatal(err, "creating config dir")
	}

	ctx := context.GaraheCtx{
		Paths: context.Paths{Config: configDir},
	}

	if err := initConfigFile(ctx, "https://garahe.example.com/api"); err != nil {
		t.Fatal(err, "creating config file")
	}

	cf, err := config.Read(ctx)
	if err != nil {
		t.Fatal(err, "reading config")
	}
	assert.Equal(t, cf.APIEndpoint, "https://garahe.example.com/api", "endpoint mismatch")
	assert.Equal(t, cf.BranchID, int64(1), "branch id mismatch")
	assert.Equal(t, cf.Backup.Frequency, config.FrequencyDaily, "backup frequency mismatch")

	// a second run must not overwrite an existing config
	cf.BranchID = 7
	if err := config.Write(ctx, cf); err != nil {
		t.Fatal(err, "editing config")
	}
	if err := initConfigFile(ctx, "https://other.example.com/api"); err != nil {
		t.Fatal(err, "re-running config init")
	}

	cf, err = config.Read(ctx)
	if err != nil {
		t.Fatal(err, "re-reading config")
	}
	assert.Equal(t, cf.BranchID, int64(7), "existing config must be preserved")
	assert.Equal(t, cf.APIEndpoint, "https://garahe.example.com/api", "existing endpoint must be preserved")
}

func TestInitConfigFileDefaultEndpoint(t *testing.T) {
	configDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(configDir, consts.GaraheDirName), 0755); err != nil {
		t.Fatal(err, "creating config dir")
	}

	ctx := context.GaraheCtx{
		Paths: context.Paths{Config: configDir},
	}

	if err := initConfigFile(ctx, ""); err != nil {
		t.Fatal(err, "creating config file")
	}

	cf, err := config.Read(ctx)
	if err != nil {
		t.Fatal(err, "reading config")
	}
	assert.Equal(t, cf.APIEndpoint, DefaultAPIEndpoint, "endpoint must fall back to the default")
}

func TestInitSystem(t *testing.T) {
	db := database.InitTestDB(t)
	ctx := context.GaraheCtx{DB: db}

	if err := InitSystem(ctx); err != nil {
		t.Fatal(err, "initializing system")
	}

	var lastSync string
	if err := database.GetSystem(db, consts.SystemLastSyncAt, &lastSync); err != nil {
		t.Fatal(err, "getting last sync time")
	}
	assert.Equal(t, lastSync, "0", "last sync time mismatch")

	var deviceID string
	if err := database.GetSystem(db, consts.SystemDeviceID, &deviceID); err != nil {
		t.Fatal(err, "getting device id")
	}
	assert.Equal(t, len(deviceID), 36, "device id must be a uuid")

	// re-running must keep the same device id
	if err := InitSystem(ctx); err != nil {
		t.Fatal(err, "re-initializing system")
	}

	var again string
	if err := database.GetSystem(db, consts.SystemDeviceID, &again); err != nil {
		t.Fatal(err, "getting device id again")
	}
	assert.Equal(t, again, deviceID, "device id must be stable across runs")
}

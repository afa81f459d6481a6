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

// Package infra provides operations and definitions for the
// local infrastructure for Garahe
package infra

import (
	"database/sql"
	"fmt"

	"github.com/garahe/garahe/pkg/cli/client"
	"github.com/garahe/garahe/pkg/cli/config"
	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/garahe/garahe/pkg/cli/utils"
	"github.com/garahe/garahe/pkg/clock"
	"github.com/garahe/garahe/pkg/dirs"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	// DefaultAPIEndpoint is the default API endpoint used when none is configured
	DefaultAPIEndpoint = "http://localhost:8000/api"
)

// RunEFunc is a function type of garahe commands
type RunEFunc func(*cobra.Command, []string) error

func getDBPath(paths context.Paths, customPath string) string {
	if customPath != "" {
		return customPath
	}

	return fmt.Sprintf("%s/%s/%s", paths.Data, consts.GaraheDirName, consts.GaraheDBFileName)
}

// newBaseCtx creates a minimal context with paths and database connection.
// This base context is used for file and database initialization before
// being enriched with config values by setupCtx.
func newBaseCtx(versionTag, customDBPath string) (context.GaraheCtx, error) {
	paths := context.Paths{
		Home:   dirs.Home,
		Config: dirs.ConfigHome,
		Data:   dirs.DataHome,
		Cache:  dirs.CacheHome,
	}

	if err := context.InitGaraheDirs(paths); err != nil {
		return context.GaraheCtx{}, errors.Wrap(err, "creating the garahe dirs")
	}

	dbPath := getDBPath(paths, customDBPath)

	db, err := database.Open(dbPath)
	if err != nil {
		return context.GaraheCtx{}, errors.Wrap(err, "connecting to db")
	}

	ctx := context.GaraheCtx{
		Paths:   paths,
		Version: versionTag,
		DB:      db,
	}

	return ctx, nil
}

// Init initializes the Garahe environment and returns a new garahe context.
// apiEndpoint is used when creating a new config file.
func Init(versionTag, apiEndpoint, dbPath string) (*context.GaraheCtx, error) {
	// a .env file can override the environment during development. A missing
	// file is not an error.
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded: %v\n", err)
	}

	ctx, err := newBaseCtx(versionTag, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "initializing a context")
	}

	if err := initConfigFile(ctx, apiEndpoint); err != nil {
		return nil, errors.Wrap(err, "generating the config file")
	}

	if err := database.Migrate(ctx.DB); err != nil {
		return nil, errors.Wrap(err, "running migrations")
	}
	if err := InitSystem(ctx); err != nil {
		return nil, errors.Wrap(err, "initializing system data")
	}

	ctx, err = setupCtx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "setting up the context")
	}

	log.Debug("context: %+v\n", context.Redact(ctx))

	return &ctx, nil
}

// setupCtx enriches the base context with values from config file and database.
// This is called after files and database have been initialized.
func setupCtx(ctx context.GaraheCtx) (context.GaraheCtx, error) {
	db := ctx.DB

	var sessionKey string
	var sessionKeyExpiry int64
	var deviceID string

	err := db.QueryRow("SELECT value FROM system WHERE key = ?", consts.SystemSessionKey).Scan(&sessionKey)
	if err != nil && err != sql.ErrNoRows {
		return ctx, errors.Wrap(err, "finding session key")
	}
	err = db.QueryRow("SELECT value FROM system WHERE key = ?", consts.SystemSessionKeyExpiry).Scan(&sessionKeyExpiry)
	if err != nil && err != sql.ErrNoRows {
		return ctx, errors.Wrap(err, "finding session key expiry")
	}
	err = db.QueryRow("SELECT value FROM system WHERE key = ?", consts.SystemDeviceID).Scan(&deviceID)
	if err != nil && err != sql.ErrNoRows {
		return ctx, errors.Wrap(err, "finding device id")
	}

	cf, err := config.Read(ctx)
	if err != nil {
		return ctx, errors.Wrap(err, "reading config")
	}

	ret := context.GaraheCtx{
		Paths:            ctx.Paths,
		Version:          ctx.Version,
		DB:               ctx.DB,
		SessionKey:       sessionKey,
		SessionKeyExpiry: sessionKeyExpiry,
		DeviceID:         deviceID,
		APIEndpoint:      cf.APIEndpoint,
		BranchID:         cf.BranchID,
		Clock:            clock.New(),
		HTTPClient:       client.NewRateLimitedHTTPClient(),
	}

	return ret, nil
}

// InitSystem inserts system data if missing. Every install gets a stable
// device id, which scopes idempotency on the server.
func InitSystem(ctx context.GaraheCtx) error {
	log.Debug("initializing the system\n")

	deviceID, err := utils.GenerateUUID()
	if err != nil {
		return errors.Wrap(err, "generating device id")
	}

	return ctx.DB.DoInTransaction(func(tx *database.DB) error {
		if err := database.InitSystemKV(tx, consts.SystemLastSyncAt, "0"); err != nil {
			return errors.Wrapf(err, "initializing system config for %s", consts.SystemLastSyncAt)
		}
		if err := database.InitSystemKV(tx, consts.SystemLastBackupAt, "0"); err != nil {
			return errors.Wrapf(err, "initializing system config for %s", consts.SystemLastBackupAt)
		}
		if err := database.InitSystemKV(tx, consts.SystemDeviceID, deviceID); err != nil {
			return errors.Wrapf(err, "initializing system config for %s", consts.SystemDeviceID)
		}

		return nil
	})
}

// initConfigFile populates a new config file if it does not exist yet
func initConfigFile(ctx context.GaraheCtx, apiEndpoint string) error {
	path := config.GetPath(ctx)
	ok, err := utils.FileExists(path)
	if err != nil {
		return errors.Wrap(err, "checking if config exists")
	}
	if ok {
		return nil
	}

	endpoint := apiEndpoint
	if endpoint == "" {
		endpoint = DefaultAPIEndpoint
	}

	if err := config.Write(ctx, config.Default(endpoint)); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}

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

package backup

import (
	"fmt"
	"path/filepath"

	"github.com/garahe/garahe/pkg/cli/config"
	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
)

// EmergencyPath returns the path of the single-slot emergency backup file
func EmergencyPath(ctx context.GaraheCtx) string {
	return filepath.Join(ctx.Paths.Data, consts.GaraheDirName, consts.EmergencyBackupFileName)
}

// cronSpec translates the backup schedule into a cron expression
func cronSpec(cfg config.BackupConfig) (string, error) {
	hour, minute, err := cfg.ParseTime()
	if err != nil {
		return "", errors.Wrap(err, "parsing backup time")
	}

	switch cfg.Frequency {
	case config.FrequencyDaily:
		return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
	case config.FrequencyWeekly:
		return fmt.Sprintf("0 %d %d * * 0", minute, hour), nil
	case config.FrequencyMonthly:
		return fmt.Sprintf("0 %d %d 1 * *", minute, hour), nil
	}

	return "", errors.Errorf("unknown backup frequency '%s'", cfg.Frequency)
}

// Manager maintains the emergency backup on the configured schedule. Each
// run overwrites the previous snapshot; there is exactly one slot.
type Manager struct {
	ctx  context.GaraheCtx
	cfg  config.BackupConfig
	cron *cron.Cron
}

// NewManager creates a backup manager
func NewManager(ctx context.GaraheCtx, cfg config.BackupConfig) *Manager {
	return &Manager{
		ctx: ctx,
		cfg: cfg,
	}
}

// Start begins running scheduled backups. It is a no-op if the schedule is
// disabled in the config.
func (m *Manager) Start() error {
	if !m.cfg.Enabled {
		return nil
	}

	spec, err := cronSpec(m.cfg)
	if err != nil {
		return errors.Wrap(err, "building backup schedule")
	}

	c := cron.New()
	err = c.AddFunc(spec, func() {
		if err := m.RunOnce(); err != nil {
			log.Error(errors.Wrap(err, "running scheduled backup").Error())
		}
	})
	if err != nil {
		return errors.Wrap(err, "scheduling backup")
	}

	c.Start()
	m.cron = c

	return nil
}

// Stop stops the schedule. A backup already in progress finishes.
func (m *Manager) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// RunOnce writes the emergency backup immediately, replacing the previous
// snapshot, and records the run timestamp.
func (m *Manager) RunOnce() error {
	doc, err := Export(m.ctx.DB, m.ctx.Clock)
	if err != nil {
		return errors.Wrap(err, "exporting local store")
	}

	path := EmergencyPath(m.ctx)
	if err := WriteFile(doc, path); err != nil {
		return errors.Wrap(err, "writing emergency backup")
	}

	if err := database.UpdateSystem(m.ctx.DB, consts.SystemLastBackupAt, m.ctx.Clock.Now().Unix()); err != nil {
		return errors.Wrap(err, "recording backup time")
	}

	log.Debug("wrote emergency backup with %d records to %s\n", doc.RecordCount, path)

	return nil
}

// RestoreEmergency imports the emergency backup into the local store
func RestoreEmergency(ctx context.GaraheCtx) (Result, error) {
	doc, err := ReadFile(EmergencyPath(ctx))
	if err != nil {
		return Result{}, errors.Wrap(err, "reading emergency backup")
	}

	ret, err := Import(ctx.DB, doc)
	if err != nil {
		return Result{}, errors.Wrap(err, "importing emergency backup")
	}

	return ret, nil
}

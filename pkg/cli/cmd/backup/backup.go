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
	"os"
	"os/signal"
	"syscall"

	"github.com/garahe/garahe/pkg/cli/backup"
	"github.com/garahe/garahe/pkg/cli/config"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/infra"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 * Write the emergency backup now
 garahe backup

 * Export the local data to a file
 garahe backup export ./garahe-backup.json

 * Merge a backup file into the local data
 garahe backup import ./garahe-backup.json

 * Restore from the emergency backup
 garahe backup restore

 * Keep the emergency backup current on the configured schedule
 garahe backup watch`

// NewCmd returns a new backup command
func NewCmd(ctx context.GaraheCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backup",
		Short:   "Back up and restore the local data",
		Example: example,
		RunE:    newRun(ctx),
	}

	cmd.AddCommand(newExportCmd(ctx))
	cmd.AddCommand(newImportCmd(ctx))
	cmd.AddCommand(newRestoreCmd(ctx))
	cmd.AddCommand(newWatchCmd(ctx))

	return cmd
}

func newRun(ctx context.GaraheCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		cf, err := config.Read(ctx)
		if err != nil {
			return errors.Wrap(err, "reading config")
		}

		m := backup.NewManager(ctx, cf.Backup)
		if err := m.RunOnce(); err != nil {
			return errors.Wrap(err, "writing backup")
		}

		log.Successf("wrote emergency backup to %s\n", backup.EmergencyPath(ctx))

		return nil
	}
}

func requirePath(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

func newExportCmd(ctx context.GaraheCtx) *cobra.Command {
	return &cobra.Command{
		Use:     "export <path>",
		Short:   "Export the local data to a backup file",
		PreRunE: requirePath,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := backup.Export(ctx.DB, ctx.Clock)
			if err != nil {
				return errors.Wrap(err, "exporting local data")
			}
			if err := backup.WriteFile(doc, args[0]); err != nil {
				return errors.Wrap(err, "writing backup file")
			}

			log.Successf("exported %d records to %s\n", doc.RecordCount, args[0])

			return nil
		},
	}
}

func newImportCmd(ctx context.GaraheCtx) *cobra.Command {
	return &cobra.Command{
		Use:     "import <path>",
		Short:   "Merge a backup file into the local data",
		PreRunE: requirePath,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := backup.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "reading backup file")
			}
			res, err := backup.Import(ctx.DB, doc)
			if err != nil {
				return errors.Wrap(err, "importing backup")
			}

			log.Successf("imported %d records, skipped %d older\n", res.Imported, res.Skipped)

			return nil
		},
	}
}

func newWatchCmd(ctx context.GaraheCtx) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled emergency backups until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := config.Read(ctx)
			if err != nil {
				return errors.Wrap(err, "reading config")
			}
			if !cf.Backup.Enabled {
				return errors.New("scheduled backups are disabled in the config")
			}

			m := backup.NewManager(ctx, cf.Backup)
			if err := m.Start(); err != nil {
				return errors.Wrap(err, "starting backup schedule")
			}
			defer m.Stop()

			log.Infof("backing up %s at %s to %s\n", cf.Backup.Frequency, cf.Backup.Time, backup.EmergencyPath(ctx))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			log.Info("stopping backup schedule\n")

			return nil
		},
	}
}

func newRestoreCmd(ctx context.GaraheCtx) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore from the emergency backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := backup.RestoreEmergency(ctx)
			if err != nil {
				return errors.Wrap(err, "restoring emergency backup")
			}

			log.Successf("imported %d records, skipped %d older\n", res.Imported, res.Skipped)

			return nil
		},
	}
}

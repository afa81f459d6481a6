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

package status

import (
	"time"

	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/infra"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewCmd returns a new status command
func NewCmd(ctx context.GaraheCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the sync status of the local data",
		Aliases: []string{"st"},
		RunE:    newRun(ctx),
	}

	return cmd
}

func formatTimestamp(ts int64) string {
	if ts == 0 {
		return "never"
	}

	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

func newRun(ctx context.GaraheCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		db := ctx.DB

		var lastSyncAt int64
		if err := database.GetSystem(db, consts.SystemLastSyncAt, &lastSyncAt); err != nil {
			return errors.Wrap(err, "getting last sync time")
		}
		var lastBackupAt int64
		if err := database.GetSystem(db, consts.SystemLastBackupAt, &lastBackupAt); err != nil {
			return errors.Wrap(err, "getting last backup time")
		}

		counts, err := database.CountUnsynced(db)
		if err != nil {
			return errors.Wrap(err, "counting unsynced records")
		}
		conflicts, err := database.ListUnresolvedConflicts(db)
		if err != nil {
			return errors.Wrap(err, "listing conflicts")
		}

		log.Plainf("last sync:   %s\n", formatTimestamp(lastSyncAt))
		log.Plainf("last backup: %s\n", formatTimestamp(lastBackupAt))
		log.Plainf("\n")

		total := 0
		for _, entity := range []string{
			database.EntityProduct,
			database.EntityCategory,
			database.EntitySale,
			database.EntityJobOrder,
			database.EntityReservation,
			database.EntityAttendance,
		} {
			n := counts[entity]
			if n > 0 {
				log.Plainf("%-12s %d pending\n", entity, n)
			}
			total += n
		}

		if total == 0 {
			log.Success("all records are synced\n")
		} else {
			log.Infof("%d record(s) waiting to be pushed\n", total)
		}

		if len(conflicts) > 0 {
			log.Warnf("%d conflict(s) need review. Run `garahe resolve`.\n", len(conflicts))
		}

		return nil
	}
}

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

package sync

import (
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/infra"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/garahe/garahe/pkg/cli/progress"
	"github.com/garahe/garahe/pkg/cli/sync"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 garahe sync`

// NewCmd returns a new sync command
func NewCmd(ctx context.GaraheCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Short:   "Sync the local data with the server",
		Aliases: []string{"s"},
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

func newRun(ctx context.GaraheCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if ctx.SessionKey == "" {
			log.Error("not logged in\n")
			return nil
		}

		reporter := progress.NewReporter()
		engine := sync.NewEngine(ctx, reporter)

		err := engine.Run(cmd.Context())

		// per-record failures do not abort a cycle. Surface them even when
		// the cycle as a whole went through.
		snap := reporter.Snapshot()
		for _, recErr := range snap.Errors {
			log.Warnf("%s %s: %s\n", recErr.Entity, recErr.LocalID, recErr.Message)
		}

		if err != nil {
			return errors.Wrap(err, "syncing")
		}

		conflicts, err := database.ListUnresolvedConflicts(ctx.DB)
		if err != nil {
			return errors.Wrap(err, "counting conflicts")
		}
		if len(conflicts) > 0 {
			log.Warnf("%d conflict(s) need review. Run `garahe resolve`.\n", len(conflicts))
		}

		return nil
	}
}

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

package resolve

import (
	"os"
	"strconv"
	"time"

	"github.com/garahe/garahe/pkg/cli/conflict"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/infra"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/garahe/garahe/pkg/prompt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var resolutionFlag string

var example = `
 * List the conflicts that need review
 garahe resolve

 * Review a conflict interactively
 garahe resolve 3

 * Resolve without a prompt
 garahe resolve 3 -r keep_mine`

func preRun(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

// NewCmd returns a new resolve command
func NewCmd(ctx context.GaraheCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resolve [conflict id]",
		Short:   "Review and resolve sync conflicts",
		Example: example,
		PreRunE: preRun,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVarP(&resolutionFlag, "resolution", "r", "", "the resolution to apply (keep_mine, use_server, review_later)")

	return cmd
}

func newRun(ctx context.GaraheCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return listConflicts(ctx)
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Errorf("invalid conflict id '%s'", args[0])
		}

		return resolveConflict(ctx, id)
	}
}

func listConflicts(ctx context.GaraheCtx) error {
	conflicts, err := database.ListUnresolvedConflicts(ctx.DB)
	if err != nil {
		return errors.Wrap(err, "listing conflicts")
	}

	if len(conflicts) == 0 {
		log.Success("no conflicts to resolve\n")
		return nil
	}

	for _, c := range conflicts {
		detected := time.Unix(c.DetectedAt, 0).Format("2006-01-02 15:04")
		log.Plainf("(%d) %s %s detected %s\n", c.ID, c.EntityType, c.LocalID, detected)
	}
	log.Infof("run `garahe resolve <id>` to review a conflict\n")

	return nil
}

func readResolution() (string, error) {
	log.Askf("keep (m)ine, use (s)erver, or review (l)ater?")
	choice, err := prompt.ReadChoice(os.Stdin, []string{"mine", "server", "later"})
	if err != nil {
		return "", errors.Wrap(err, "reading choice")
	}

	switch choice {
	case "mine":
		return conflict.ResolutionKeepMine, nil
	case "server":
		return conflict.ResolutionUseServer, nil
	default:
		return conflict.ResolutionReviewLater, nil
	}
}

func validResolution(r string) bool {
	return r == conflict.ResolutionKeepMine ||
		r == conflict.ResolutionUseServer ||
		r == conflict.ResolutionReviewLater
}

func resolveConflict(ctx context.GaraheCtx, id int64) error {
	c, err := database.GetConflict(ctx.DB, id)
	if err != nil {
		return errors.Wrap(err, "finding conflict")
	}
	if c.Resolved {
		log.Infof("conflict %d is already resolved\n", id)
		return nil
	}

	resolution := resolutionFlag
	if resolution == "" {
		log.Plainf("%s %s\n", c.EntityType, c.LocalID)
		log.Plain(conflict.FormatDiff(c))

		resolution, err = readResolution()
		if err != nil {
			return err
		}
	} else if !validResolution(resolution) {
		return errors.Errorf("invalid resolution '%s'", resolution)
	}

	if err := conflict.Resolve(ctx.DB, ctx.Clock, id, resolution); err != nil {
		return errors.Wrap(err, "resolving conflict")
	}

	switch resolution {
	case conflict.ResolutionReviewLater:
		log.Infof("conflict %d left for later review\n", id)
	default:
		log.Successf("resolved conflict %d with %s\n", id, resolution)
	}

	return nil
}

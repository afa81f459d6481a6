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

package logout

import (
	stdctx "context"

	"github.com/garahe/garahe/pkg/cli/client"
	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/infra"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ErrNotLoggedIn is an error for logging out when not logged in
var ErrNotLoggedIn = errors.New("not logged in")

var example = `
 garahe logout`

// NewCmd returns a new logout command
func NewCmd(ctx context.GaraheCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "logout",
		Short:   "Logout from the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

// Do deletes the session on the server and clears it locally
func Do(ctx stdctx.Context, gctx context.GaraheCtx) error {
	db := gctx.DB

	var key string
	err := database.GetSystem(db, consts.SystemSessionKey, &key)
	if errors.Cause(err) == database.ErrNotFound {
		return ErrNotLoggedIn
	} else if err != nil {
		return errors.Wrap(err, "getting session key")
	}
	if key == "" {
		return ErrNotLoggedIn
	}

	if err := client.Signout(ctx, gctx, key); err != nil {
		return errors.Wrap(err, "requesting logout")
	}

	return db.DoInTransaction(func(tx *database.DB) error {
		if err := database.DeleteSystem(tx, consts.SystemSessionKey); err != nil {
			return errors.Wrap(err, "deleting session key")
		}
		if err := database.DeleteSystem(tx, consts.SystemSessionKeyExpiry); err != nil {
			return errors.Wrap(err, "deleting session key expiry")
		}

		return nil
	})
}

func newRun(ctx context.GaraheCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		err := Do(cmd.Context(), ctx)
		if err == ErrNotLoggedIn {
			log.Error("not logged in\n")
			return nil
		} else if err != nil {
			return errors.Wrap(err, "logging out")
		}

		log.Success("logged out\n")

		return nil
	}
}

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

package login

import (
	"bufio"
	stdctx "context"
	"net/url"
	"os"
	"strings"

	"github.com/garahe/garahe/pkg/cli/client"
	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/infra"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var usernameFlag string
var passwordFlag string

var example = `
 garahe login`

// NewCmd returns a new login command
func NewCmd(ctx context.GaraheCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Login to the Garahe server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVarP(&usernameFlag, "username", "u", "", "the username to login with")
	f.StringVarP(&passwordFlag, "password", "p", "", "the password to login with")

	return cmd
}

// getServerDisplayURL returns the origin of the configured API endpoint for
// display purposes. It returns an empty string if the endpoint is not a
// well-formed URL.
func getServerDisplayURL(ctx context.GaraheCtx) string {
	u, err := url.Parse(ctx.APIEndpoint)
	if err != nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}

	return u.Scheme + "://" + u.Host
}

func readInput(label string) (string, error) {
	log.Askf(label)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "reading input")
	}

	return strings.TrimSpace(input), nil
}

// Do requests a session and stores it in the local database
func Do(ctx stdctx.Context, gctx context.GaraheCtx, username, password string) error {
	resp, err := client.Signin(ctx, gctx, username, password)
	if err != nil {
		return errors.Wrap(err, "requesting session")
	}
	if resp.Key == "" {
		return errors.New("server responded with an empty session key")
	}

	return gctx.DB.DoInTransaction(func(tx *database.DB) error {
		if err := database.UpdateSystem(tx, consts.SystemSessionKey, resp.Key); err != nil {
			return errors.Wrap(err, "saving session key")
		}
		if err := database.UpdateSystem(tx, consts.SystemSessionKeyExpiry, resp.ExpiresAt); err != nil {
			return errors.Wrap(err, "saving session key expiry")
		}

		return nil
	})
}

func newRun(ctx context.GaraheCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if displayURL := getServerDisplayURL(ctx); displayURL != "" {
			log.Infof("logging in to %s\n", displayURL)
		}

		username := usernameFlag
		password := passwordFlag

		var err error
		if username == "" {
			if username, err = readInput("username"); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = readInput("password"); err != nil {
				return err
			}
		}
		if username == "" || password == "" {
			return errors.New("empty username or password")
		}

		err = Do(cmd.Context(), ctx, username, password)
		if errors.Cause(err) == client.ErrInvalidLogin {
			log.Error("wrong username or password\n")
			return nil
		} else if err != nil {
			return errors.Wrap(err, "logging in")
		}

		log.Success("logged in\n")

		return nil
	}
}

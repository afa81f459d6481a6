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

package client

import (
	stdctx "context"
	"encoding/json"
	"net/http"

	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/pkg/errors"
)

// ErrInvalidLogin is an error for a signin attempt with wrong credentials
var ErrInvalidLogin = errors.New("invalid username or password")

// SigninPayload is a payload for /v1/signin
type SigninPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SigninResponse is a response from the /v1/signin endpoint
type SigninResponse struct {
	Key       string `json:"key"`
	ExpiresAt int64  `json:"expires_at"`
}

// Signin requests a session token
func Signin(ctx stdctx.Context, gctx context.GaraheCtx, username, password string) (SigninResponse, error) {
	payload := SigninPayload{
		Username: username,
		Password: password,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return SigninResponse{}, errors.Wrap(err, "marshaling payload")
	}

	res, err := doReq(ctx, gctx, "POST", "/v1/signin", string(b))
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return SigninResponse{}, ErrInvalidLogin
		}
		return SigninResponse{}, errors.Wrap(err, "making http request")
	}
	defer res.Body.Close()

	var resp SigninResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return SigninResponse{}, errors.Wrap(err, "decoding payload")
	}

	return resp, nil
}

// Signout deletes the session on the server side. The endpoint responds with
// no body, so the request goes out without the content type check used for
// the JSON endpoints.
func Signout(ctx stdctx.Context, gctx context.GaraheCtx, sessionKey string) error {
	gctx.SessionKey = sessionKey

	req, err := getReq(ctx, gctx, "/v1/signout", "POST", "")
	if err != nil {
		return errors.Wrap(err, "getting request")
	}

	hc := getHTTPClient(gctx)
	res, err := hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "making http request")
	}
	defer res.Body.Close()

	if err := checkRespErr(res); err != nil {
		return errors.Wrap(err, "server responded with an error")
	}

	return nil
}

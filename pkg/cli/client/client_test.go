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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garahe/garahe/pkg/assert"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/pkg/errors"
)

func newTestCtx(endpoint string) context.GaraheCtx {
	return context.GaraheCtx{
		APIEndpoint: endpoint,
		Version:     "0.1.0-test",
		SessionKey:  "test-session",
		DeviceID:    "test-device",
		BranchID:    1,
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotDevice, gotVersion string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDevice = r.Header.Get("X-Device-ID")
		gotVersion = r.Header.Get("CLI-Version")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer server.Close()

	gctx := newTestCtx(server.URL)
	if _, err := GetCategories(stdctx.Background(), gctx); err != nil {
		t.Fatal(err, "getting categories")
	}

	assert.Equal(t, gotAuth, "Bearer test-session", "authorization header mismatch")
	assert.Equal(t, gotDevice, "test-device", "device header mismatch")
	assert.Equal(t, gotVersion, "0.1.0-test", "version header mismatch")
}

func TestNoSessionKey(t *testing.T) {
	gctx := newTestCtx("http://localhost:1")
	gctx.SessionKey = ""

	if _, err := GetCategories(stdctx.Background(), gctx); err == nil {
		t.Fatal("expected an error without a session key")
	}
}

func TestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "something broke", http.StatusInternalServerError)
	}))
	defer server.Close()

	gctx := newTestCtx(server.URL)
	_, err := GetCategories(stdctx.Background(), gctx)
	if err == nil {
		t.Fatal("expected an error")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected an HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.StatusCode, http.StatusInternalServerError, "status code mismatch")
	assert.Equal(t, httpErr.Message, "something broke", "message mismatch")
	assert.Equal(t, httpErr.IsConflict(), false, "conflict flag mismatch")
}

func TestContentTypeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	gctx := newTestCtx(server.URL)
	_, err := GetCategories(stdctx.Background(), gctx)
	if errors.Cause(err) != ErrContentTypeMismatch {
		t.Fatalf("expected ErrContentTypeMismatch, got %v", err)
	}
}

func TestPushResultParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Method, "POST", "method mismatch")
		assert.Equal(t, r.URL.Path, "/v1/sync/sales", "path mismatch")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": [
			{"client_ref": "SO-1", "status": "ok", "id": 301},
			{"client_ref": "SO-2", "status": "rejected", "message": "total mismatch"},
			{"client_ref": "SO-3", "status": "conflict", "record": {"total": "99"}}
		]}`)
	}))
	defer server.Close()

	gctx := newTestCtx(server.URL)
	resp, err := PushSales(stdctx.Background(), gctx, []SalePayload{
		{ClientRef: "SO-1"}, {ClientRef: "SO-2"}, {ClientRef: "SO-3"},
	})
	if err != nil {
		t.Fatal(err, "pushing sales")
	}

	assert.Equal(t, len(resp.Results), 3, "result count mismatch")
	assert.Equal(t, resp.Results[0].Status, PushStatusOK, "first status mismatch")
	assert.Equal(t, resp.Results[0].ID, int64(301), "first id mismatch")
	assert.Equal(t, resp.Results[1].Status, PushStatusRejected, "second status mismatch")
	assert.Equal(t, resp.Results[1].Message, "total mismatch", "second message mismatch")
	assert.Equal(t, resp.Results[2].Status, PushStatusConflict, "third status mismatch")
	assert.Equal(t, string(resp.Results[2].Record), `{"total": "99"}`, "third record mismatch")
}

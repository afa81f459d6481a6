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

// Package client provides interfaces for interacting with the Garahe server
// and the data structures for requests and responses
package client

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrContentTypeMismatch is an error for an unexpected response content type
var ErrContentTypeMismatch = errors.New("content type mismatch")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsConflict returns true if the error is a 409 Conflict error
func (e *HTTPError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

var contentTypeApplicationJSON = "application/json"

const (
	// clientRateLimitPerSecond is the max requests per second the client will make
	clientRateLimitPerSecond = 50
	// clientRateLimitBurst is the burst capacity for rate limiting
	clientRateLimitBurst = 100
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient() *http.Client {
	interval := time.Second / time.Duration(clientRateLimitPerSecond)

	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Every(interval), clientRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
	}
}

func getHTTPClient(ctx context.GaraheCtx) *http.Client {
	if ctx.HTTPClient != nil {
		return ctx.HTTPClient
	}

	return &http.Client{}
}

func getReq(ctx stdctx.Context, gctx context.GaraheCtx, path, method, body string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s%s", gctx.APIEndpoint, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "constructing http request")
	}

	req.Header.Set("CLI-Version", gctx.Version)
	if body != "" {
		req.Header.Set("Content-Type", contentTypeApplicationJSON)
	}

	if gctx.DeviceID != "" {
		req.Header.Set("X-Device-ID", gctx.DeviceID)
	}
	if gctx.SessionKey != "" {
		credential := fmt.Sprintf("Bearer %s", gctx.SessionKey)
		req.Header.Set("Authorization", credential)
	}

	return req, nil
}

// checkRespErr checks if the given http response indicates an error. It returns a decoded
// error message if so.
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	bodyStr := string(body)
	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    strings.TrimRight(bodyStr, "\n"),
	}
}

func checkContentType(res *http.Response) error {
	got := res.Header.Get("Content-Type")
	if !strings.HasPrefix(got, contentTypeApplicationJSON) {
		return errors.Wrapf(ErrContentTypeMismatch, "got: '%s' want: '%s'. Did you configure your endpoint correctly?", got, contentTypeApplicationJSON)
	}

	return nil
}

// doReq does a http request to the given path in the api endpoint
func doReq(ctx stdctx.Context, gctx context.GaraheCtx, method, path, body string) (*http.Response, error) {
	req, err := getReq(ctx, gctx, path, method, body)
	if err != nil {
		return nil, errors.Wrap(err, "getting request")
	}

	log.Debug("HTTP %s %s\n", method, path)

	hc := getHTTPClient(gctx)
	res, err := hc.Do(req)
	if err != nil {
		return res, errors.Wrap(err, "making http request")
	}

	log.Debug("HTTP %d %s\n", res.StatusCode, res.Status)

	if err = checkRespErr(res); err != nil {
		return res, errors.Wrap(err, "server responded with an error")
	}

	if err = checkContentType(res); err != nil {
		return res, errors.Wrap(err, "unexpected Content-Type")
	}

	return res, nil
}

// doAuthorizedReq does a http request to the given path in the api endpoint as a user,
// with the appropriate headers. The given path should include the preceding slash.
func doAuthorizedReq(ctx stdctx.Context, gctx context.GaraheCtx, method, path, body string) (*http.Response, error) {
	if gctx.SessionKey == "" {
		return nil, errors.New("no session key found")
	}

	return doReq(ctx, gctx, method, path, body)
}

// RemoteBranchStock is a per-branch stock entry nested in a remote product
type RemoteBranchStock struct {
	BranchID int64 `json:"branch_id"`
	Quantity int64 `json:"quantity"`
}

// RemoteProduct is a product in a catalog snapshot from the server
type RemoteProduct struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	SKU               string              `json:"sku"`
	Type              string              `json:"type"`
	CategoryID        *int64              `json:"category_id"`
	CategoryName      string              `json:"category_name"`
	Price             string              `json:"price"`
	Cost              string              `json:"cost"`
	Description       string              `json:"description"`
	StockQuantity     *int64              `json:"stock_quantity"`
	BranchStocks      []RemoteBranchStock `json:"branch_stocks"`
	LowStockThreshold int64               `json:"low_stock_threshold"`
	CreatedAt         int64               `json:"created_at"`
	UpdatedAt         int64               `json:"updated_at"`
}

// RemoteCategory is a category in a catalog snapshot from the server
type RemoteCategory struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// RemoteLineItem is a single line of a pushed or pulled transaction
type RemoteLineItem struct {
	ProductID *int64 `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// SalePayload is a sale record in a push batch. ClientRef carries the
// locally generated sale number and doubles as the idempotency key.
type SalePayload struct {
	ClientRef     string           `json:"client_ref"`
	BranchID      int64            `json:"branch_id"`
	Items         []RemoteLineItem `json:"items"`
	Subtotal      string           `json:"subtotal"`
	Discount      string           `json:"discount"`
	Total         string           `json:"total"`
	PaymentMethod string           `json:"payment_method"`
	AmountPaid    string           `json:"amount_paid"`
	ChangeDue     string           `json:"change_due"`
	CustomerName  string           `json:"customer_name"`
	CreatedAt     int64            `json:"created_at"`
}

// JobOrderPayload is a job order record in a push batch
type JobOrderPayload struct {
	ClientRef    string           `json:"client_ref"`
	BranchID     int64            `json:"branch_id"`
	CustomerName string           `json:"customer_name"`
	Vehicle      string           `json:"vehicle"`
	MechanicName string           `json:"mechanic_name"`
	Items        []RemoteLineItem `json:"items"`
	LaborCost    string           `json:"labor_cost"`
	Total        string           `json:"total"`
	Status       string           `json:"status"`
	Remarks      string           `json:"remarks"`
	CreatedAt    int64            `json:"created_at"`
}

// ReservationPayload is a reservation record in a push batch
type ReservationPayload struct {
	ClientRef    string           `json:"client_ref"`
	BranchID     int64            `json:"branch_id"`
	CustomerName string           `json:"customer_name"`
	ReservedFor  int64            `json:"reserved_for"`
	Items        []RemoteLineItem `json:"items"`
	Total        string           `json:"total"`
	Status       string           `json:"status"`
	CreatedAt    int64            `json:"created_at"`
}

// AttendancePayload is an attendance record in a push batch
type AttendancePayload struct {
	ClientRef    string `json:"client_ref"`
	BranchID     int64  `json:"branch_id"`
	EmployeeID   int64  `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	ClockIn      int64  `json:"clock_in"`
	ClockOut     *int64 `json:"clock_out"`
	Remarks      string `json:"remarks"`
	CreatedAt    int64  `json:"created_at"`
}

// ProductPayload is a locally created product in a push batch. ClientRef
// carries the product's local id since products have no generated number.
type ProductPayload struct {
	ClientRef         string `json:"client_ref"`
	BranchID          int64  `json:"branch_id"`
	Name              string `json:"name"`
	SKU               string `json:"sku"`
	Type              string `json:"type"`
	CategoryID        *int64 `json:"category_id"`
	Price             string `json:"price"`
	Cost              string `json:"cost"`
	Description       string `json:"description"`
	Stock             int64  `json:"stock"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
	CreatedAt         int64  `json:"created_at"`
}

// Push result statuses
const (
	PushStatusOK       = "ok"
	PushStatusRejected = "rejected"
	PushStatusConflict = "conflict"
)

// PushResult is the per-record outcome of a push batch. For a conflict the
// server includes its copy of the record in Record, serialized in the same
// field layout as the local models, so that a resolution can apply the
// server version without remapping.
type PushResult struct {
	ClientRef string          `json:"client_ref"`
	Status    string          `json:"status"`
	ID        int64           `json:"id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Record    json.RawMessage `json:"record,omitempty"`
}

// PushResp is the response from a push endpoint
type PushResp struct {
	Results []PushResult `json:"results"`
}

type pushPayload struct {
	Records interface{} `json:"records"`
}

func pushBatch(ctx stdctx.Context, gctx context.GaraheCtx, path string, records interface{}) (PushResp, error) {
	b, err := json.Marshal(pushPayload{Records: records})
	if err != nil {
		return PushResp{}, errors.Wrap(err, "marshalling push payload")
	}

	res, err := doAuthorizedReq(ctx, gctx, "POST", path, string(b))
	if err != nil {
		return PushResp{}, errors.Wrap(err, "posting a batch to the server")
	}

	var resp PushResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding response payload")
	}

	return resp, nil
}

// PushProducts pushes a batch of locally created products to the server
func PushProducts(ctx stdctx.Context, gctx context.GaraheCtx, records []ProductPayload) (PushResp, error) {
	return pushBatch(ctx, gctx, "/v1/sync/products", records)
}

// PushSales pushes a batch of sales to the server
func PushSales(ctx stdctx.Context, gctx context.GaraheCtx, records []SalePayload) (PushResp, error) {
	return pushBatch(ctx, gctx, "/v1/sync/sales", records)
}

// PushJobOrders pushes a batch of job orders to the server
func PushJobOrders(ctx stdctx.Context, gctx context.GaraheCtx, records []JobOrderPayload) (PushResp, error) {
	return pushBatch(ctx, gctx, "/v1/sync/job-orders", records)
}

// PushReservations pushes a batch of reservations to the server
func PushReservations(ctx stdctx.Context, gctx context.GaraheCtx, records []ReservationPayload) (PushResp, error) {
	return pushBatch(ctx, gctx, "/v1/sync/reservations", records)
}

// PushAttendance pushes a batch of attendance records to the server
func PushAttendance(ctx stdctx.Context, gctx context.GaraheCtx, records []AttendancePayload) (PushResp, error) {
	return pushBatch(ctx, gctx, "/v1/sync/attendance", records)
}

// RemoteReservation is a reservation in a snapshot from the server
type RemoteReservation struct {
	ID           int64            `json:"id"`
	ClientRef    string           `json:"client_ref"`
	BranchID     int64            `json:"branch_id"`
	CustomerName string           `json:"customer_name"`
	ReservedFor  int64            `json:"reserved_for"`
	Items        []RemoteLineItem `json:"items"`
	Total        string           `json:"total"`
	Status       string           `json:"status"`
	CreatedAt    int64            `json:"created_at"`
	UpdatedAt    int64            `json:"updated_at"`
}

func getSnapshot(ctx stdctx.Context, gctx context.GaraheCtx, path string, dest interface{}) error {
	res, err := doAuthorizedReq(ctx, gctx, "GET", path, "")
	if err != nil {
		return errors.Wrap(err, "making the request")
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "reading the response body")
	}

	if err = json.Unmarshal(body, dest); err != nil {
		return errors.Wrap(err, "unmarshalling the payload")
	}

	return nil
}

// GetCategoriesResp is the response from the category snapshot endpoint
type GetCategoriesResp struct {
	Items []RemoteCategory `json:"items"`
}

// GetCategories gets the current category snapshot from the server
func GetCategories(ctx stdctx.Context, gctx context.GaraheCtx) (GetCategoriesResp, error) {
	var ret GetCategoriesResp
	if err := getSnapshot(ctx, gctx, "/v1/catalog/categories", &ret); err != nil {
		return ret, errors.Wrap(err, "getting categories")
	}

	return ret, nil
}

// GetProductsResp is the response from the product snapshot endpoint
type GetProductsResp struct {
	Items []RemoteProduct `json:"items"`
}

// GetProducts gets the current product snapshot for the given branch
func GetProducts(ctx stdctx.Context, gctx context.GaraheCtx, branchID int64) (GetProductsResp, error) {
	v := url.Values{}
	v.Set("branch_id", strconv.FormatInt(branchID, 10))

	var ret GetProductsResp
	path := fmt.Sprintf("/v1/catalog/products?%s", v.Encode())
	if err := getSnapshot(ctx, gctx, path, &ret); err != nil {
		return ret, errors.Wrap(err, "getting products")
	}

	return ret, nil
}

// GetReservationsResp is the response from the reservation snapshot endpoint
type GetReservationsResp struct {
	Items []RemoteReservation `json:"items"`
}

// GetReservations gets the current reservation snapshot for the given branch
func GetReservations(ctx stdctx.Context, gctx context.GaraheCtx, branchID int64) (GetReservationsResp, error) {
	v := url.Values{}
	v.Set("branch_id", strconv.FormatInt(branchID, 10))

	var ret GetReservationsResp
	path := fmt.Sprintf("/v1/reservations?%s", v.Encode())
	if err := getSnapshot(ctx, gctx, path, &ret); err != nil {
		return ret, errors.Wrap(err, "getting reservations")
	}

	return ret, nil
}

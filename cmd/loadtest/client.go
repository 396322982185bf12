package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	userIDHeader      = "X-User-ID"
	idempotencyHeader = "Idempotency-Key"
)

type optimizeItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type optimizeRequest struct {
	Items      []optimizeItem `json:"items"`
	AddressID  *int64         `json:"address_id,omitempty"`
	AllowSwaps bool           `json:"allow_swaps"`
}

type planLine struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type martPlan struct {
	MartID int64      `json:"mart_id"`
	Items  []planLine `json:"items"`
}

type plan struct {
	GrandTotal int64      `json:"grand_total"`
	Marts      []martPlan `json:"marts"`
}

type optimizeResponse struct {
	Address struct {
		ID int64 `json:"id"`
	} `json:"address"`
	Result    plan `json:"result"`
	Truncated bool `json:"truncated"`
}

type fromPlanRequest struct {
	Plan          plan   `json:"plan"`
	AddressID     int64  `json:"address_id"`
	ContactNumber string `json:"contact_number"`
}

type fromPlanResponse struct {
	Orders []struct {
		OrderID string `json:"order_id"`
	} `json:"orders"`
}

// statusError описывает ответ API с кодом не 2xx.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// apiClient вызывает HTTP API корзины от имени пользователя и пишет каждое обращение в collector.
type apiClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	col     *collector
}

func newAPIClient(baseURL string, httpClient *http.Client, timeout time.Duration, col *collector) *apiClient {
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: 256}}
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		timeout: timeout,
		col:     col,
	}
}

func (c *apiClient) optimize(ctx context.Context, userID int64, req optimizeRequest) (optimizeResponse, error) {
	var resp optimizeResponse
	err := c.do(ctx, "Optimize", http.MethodPost, "/api/v1/basket/optimize", userID, "", req, &resp)
	return resp, err
}

func (c *apiClient) createFromPlan(ctx context.Context, userID int64, key string, req fromPlanRequest) (fromPlanResponse, error) {
	var resp fromPlanResponse
	err := c.do(ctx, "CreateFromPlan", http.MethodPost, "/api/v1/orders/from-plan", userID, key, req, &resp)
	return resp, err
}

func (c *apiClient) cancel(ctx context.Context, userID int64, orderID string) error {
	body := map[string]string{"reason": "load-cancel"}
	return c.do(ctx, "CancelOrder", http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", userID, "", body, nil)
}

func (c *apiClient) do(ctx context.Context, method, httpMethod, path string, userID int64, key string, in, out any) (err error) {
	start := time.Now()
	code := "error"
	defer func() {
		c.col.record(method, time.Since(start), code, err == nil)
	}()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userIDHeader, strconv.FormatInt(userID, 10))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			code = "timeout"
		}
		return err
	}
	defer resp.Body.Close()
	code = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

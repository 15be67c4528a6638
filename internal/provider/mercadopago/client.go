// Package mercadopago is a thin client over the MercadoPago payments
// API, covering only the operations the settlement engine needs.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"autorenta-settlement/internal/logger"
)

// Payment statuses as reported by the provider.
const (
	StatusApproved   = "approved"
	StatusAuthorized = "authorized"
	StatusPending    = "pending"
	StatusInProcess  = "in_process"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusChargedBack = "charged_back"
	StatusInMediation = "in_mediation"
)

// failureStatuses are terminal: a payment in one of these states will
// never become approved and its pending ledger entry can be failed.
var failureStatuses = map[string]bool{
	StatusRejected:    true,
	StatusCancelled:   true,
	StatusRefunded:    true,
	StatusChargedBack: true,
	StatusInMediation: true,
}

// IsTerminalFailure reports whether a payment status is a terminal failure.
func IsTerminalFailure(status string) bool {
	return failureStatuses[status]
}

// Payment is the subset of the provider payment resource we consume.
type Payment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	DateCreated       string  `json:"date_created"`
	DateApproved      string  `json:"date_approved"`
	Captured          bool    `json:"captured"`
}

// AmountCents returns the transaction amount in integer cents.
func (p *Payment) AmountCents() int64 {
	return int64(p.TransactionAmount*100 + 0.5)
}

type searchResponse struct {
	Results []Payment `json:"results"`
	Paging  struct {
		Total int `json:"total"`
	} `json:"paging"`
}

// Client calls the MercadoPago REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:     baseURL,
		accessToken: accessToken,
	}
}

// GetPayment fetches one payment by provider id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}

	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}
	return &p, nil
}

// SearchPaymentsByExternalReference returns all payments carrying the
// given external reference, newest first. The external reference is our
// wallet transaction id, so this is how polling finds a payment whose
// webhook never arrived.
func (c *Client) SearchPaymentsByExternalReference(ctx context.Context, externalRef string) ([]Payment, error) {
	path := "/v1/payments/search?sort=date_created&criteria=desc&external_reference=" + url.QueryEscape(externalRef)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return resp.Results, nil
}

// CapturePreauthorization captures an authorized payment, optionally for
// less than the authorized amount. amountCents <= 0 captures in full.
func (c *Client) CapturePreauthorization(ctx context.Context, paymentID string, amountCents int64) (*Payment, error) {
	req := map[string]any{"capture": true}
	if amountCents > 0 {
		req["transaction_amount"] = float64(amountCents) / 100
	}

	body, err := c.doRequest(ctx, http.MethodPut, "/v1/payments/"+url.PathEscape(paymentID), req)
	if err != nil {
		return nil, err
	}

	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse capture response: %w", err)
	}
	return &p, nil
}

// ReleasePreauthorization cancels an authorized payment, releasing the
// hold on the renter's card.
func (c *Client) ReleasePreauthorization(ctx context.Context, paymentID string) (*Payment, error) {
	req := map[string]any{"status": StatusCancelled}

	body, err := c.doRequest(ctx, http.MethodPut, "/v1/payments/"+url.PathEscape(paymentID), req)
	if err != nil {
		return nil, err
	}

	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse release response: %w", err)
	}
	return &p, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	logger.ExternalServiceCall("mercadopago", method+" "+path)

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBytes, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		// The provider dedupes retried mutations on this key.
		req.Header.Set("X-Idempotency-Key", uuid.New().String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.ExternalServiceResult("mercadopago", method+" "+path, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.ExternalServiceResult("mercadopago", method+" "+path, err)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := fmt.Errorf("mercadopago error: status=%d body=%s", resp.StatusCode, string(respBody))
		logger.ExternalServiceResult("mercadopago", method+" "+path, apiErr, "status", resp.StatusCode)
		return nil, apiErr
	}

	logger.ExternalServiceResult("mercadopago", method+" "+path, nil, "status", resp.StatusCode)
	return respBody, nil
}

// Package gateway queries the payment gateway for the authoritative status of a
// payment named in a webhook notification.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pixstore/internal/config"
	"pixstore/pkg/retry"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const paymentPath = "/v1/payments/"

// StatusApproved is the only gateway status that releases goods.
const StatusApproved = "approved"

var (
	ErrGatewayUnavailable = errors.New("gateway: unavailable")
	ErrPaymentNotFound    = errors.New("gateway: payment not found")
)

// Payment is the subset of the gateway payment resource the store relies on.
type Payment struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
}

// Approved reports whether the payment has been approved.
func (p Payment) Approved() bool {
	return p.Status == StatusApproved
}

// AmountCents converts the transaction amount to integer cents.
func (p Payment) AmountCents() int64 {
	return p.TransactionAmount.Shift(2).Round(0).IntPart()
}

// MercadoPago is an HTTP client for the Mercado Pago payments API.
type MercadoPago struct {
	baseURL string
	token   string
	client  *http.Client
	policy  retry.Policy
}

// NewMercadoPago creates a client from configuration.
func NewMercadoPago(cfg config.GatewayConfig) *MercadoPago {
	return &MercadoPago{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		client:  &http.Client{Timeout: cfg.Timeout},
		policy: retry.Policy{
			Attempts: cfg.MaxRetries + 1,
			Base:     cfg.Backoff,
			Max:      30 * time.Second,
		},
	}
}

// GetPayment fetches a payment by id, retrying while the gateway is unavailable.
func (m *MercadoPago) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrPaymentNotFound)
	}

	var payment *Payment
	attempt := 0
	err := retry.Do(ctx, m.policy, func(ctx context.Context) error {
		attempt++
		p, err := m.fetch(ctx, id)
		if err == nil {
			payment = p
			return nil
		}
		if errors.Is(err, ErrGatewayUnavailable) {
			log.Warn().Err(err).Str("payment_id", id).Int("attempt", attempt).Msg("payment gateway unavailable")
			return err
		}
		return retry.Permanent(err)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (m *MercadoPago) fetch(ctx context.Context, id string) (*Payment, error) {
	endpoint := m.baseURL + paymentPath + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("gateway: payment %s lookup failed with status %d", id, resp.StatusCode)
	}

	var raw struct {
		Payment
		ID json.Number `json:"id"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("gateway: invalid payment response: %w", err)
	}
	p := raw.Payment
	p.ID = raw.ID.String()
	return &p, nil
}

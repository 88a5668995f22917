// Package fulfillment hands paid goods to the buyer.
package fulfillment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Delivery names what to hand over and to whom.
type Delivery struct {
	OrderID        string `json:"order_id"`
	BuyerReference string `json:"buyer_reference"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
}

// Deliverer transfers the digital good for one order. Implementations must
// tolerate being called again for the same order after a crash.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Artifact is the fixed digital good sent for every order.
type Artifact struct {
	Path     string
	Filename string
	Caption  string
}

// Read loads the artifact content. It is read per delivery so the file can be
// replaced without a restart.
func (a Artifact) Read() ([]byte, error) {
	content, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", a.Path, err)
	}
	return content, nil
}

type deliveryRequest struct {
	Delivery
	Filename      string `json:"filename"`
	Caption       string `json:"caption"`
	ContentBase64 string `json:"content_base64"`
}

// HTTPDeliverer posts the artifact to the front-end callback that owns the
// buyer's conversation.
type HTTPDeliverer struct {
	url      string
	artifact Artifact
	client   *http.Client
}

func NewHTTPDeliverer(url string, artifact Artifact, timeout time.Duration) *HTTPDeliverer {
	return &HTTPDeliverer{
		url:      url,
		artifact: artifact,
		client:   &http.Client{Timeout: timeout},
	}
}

func (h *HTTPDeliverer) Deliver(ctx context.Context, d Delivery) error {
	content, err := h.artifact.Read()
	if err != nil {
		return err
	}
	body, err := json.Marshal(deliveryRequest{
		Delivery:      d,
		Filename:      h.artifact.Filename,
		Caption:       h.artifact.Caption,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", d.OrderID)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver order %s: %w", d.OrderID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver order %s: callback returned status %d", d.OrderID, resp.StatusCode)
	}
	return nil
}

// LogDeliverer only logs deliveries. It is used when no callback URL is configured.
type LogDeliverer struct {
	artifact Artifact
}

func NewLogDeliverer(artifact Artifact) *LogDeliverer {
	return &LogDeliverer{artifact: artifact}
}

func (l *LogDeliverer) Deliver(_ context.Context, d Delivery) error {
	content, err := l.artifact.Read()
	if err != nil {
		return err
	}
	log.Info().
		Str("order_id", d.OrderID).
		Str("buyer_reference", d.BuyerReference).
		Str("product_id", d.ProductID).
		Int("quantity", d.Quantity).
		Str("filename", l.artifact.Filename).
		Int("bytes", len(content)).
		Msg("delivery logged")
	return nil
}

package crossdomain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GauravKarakoti/OddsSync/internal/model"
)

// Forwarder delivers a bet to the market's home domain and returns the
// receipt routed back. Delivery is at-least-once from the core's point of
// view; retries, if any, belong to the transport.
type Forwarder interface {
	Forward(ctx context.Context, destDomain string, msg model.CrossDomainBet) (Receipt, error)
}

// HTTPForwarder posts cross-domain bets to peer deployments over HTTP.
// Peers maps a domain identifier to the base URL of the deployment hosting
// it.
type HTTPForwarder struct {
	client *http.Client
	peers  map[string]string
}

// NewHTTPForwarder creates a forwarder with the given domain → base URL
// routing table.
func NewHTTPForwarder(peers map[string]string) *HTTPForwarder {
	return &HTTPForwarder{
		client: &http.Client{Timeout: 10 * time.Second},
		peers:  peers,
	}
}

// Forward posts the message to the destination domain's inbound endpoint.
// The synchronous response body is the receipt; a transport failure is
// returned as an error so the transport layer can retry with the same
// sequence number (the dedup log makes the retry safe).
func (f *HTTPForwarder) Forward(ctx context.Context, destDomain string, msg model.CrossDomainBet) (Receipt, error) {
	base, ok := f.peers[destDomain]
	if !ok {
		return Receipt{}, fmt.Errorf("no route to domain %s", destDomain)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal cross-domain bet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		base+"/api/v1/crossdomain/bets", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("deliver to domain %s: %w", destDomain, err)
	}
	defer resp.Body.Close()

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt from domain %s: %w", destDomain, err)
	}
	return receipt, nil
}

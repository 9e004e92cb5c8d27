package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// Reference endpoints read before every synthesis.
const (
	EndpointVATRates      = "/vat-rates"
	EndpointInvoiceSeries = "/invoice-series"
	EndpointCustomers     = "/customers"
)

// ErrReferenceUnavailable wraps any failure to read reference data.
var ErrReferenceUnavailable = errors.New("reference data unavailable")

// Snapshot is the reference data of a single message. It is never shared.
type Snapshot struct {
	VATRates      json.RawMessage
	InvoiceSeries json.RawMessage
	Customers     json.RawMessage
}

// FetchSnapshot reads the three reference collections concurrently.
// The first failure cancels the others and fails the snapshot.
func (c *Client) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	targets := []struct {
		endpoint string
		dst      *json.RawMessage
	}{
		{EndpointVATRates, &snap.VATRates},
		{EndpointInvoiceSeries, &snap.InvoiceSeries},
		{EndpointCustomers, &snap.Customers},
	}
	for _, tgt := range targets {
		g.Go(func() error {
			res, err := c.Execute(gctx, Request{Method: http.MethodGet, Endpoint: tgt.endpoint})
			if err != nil {
				return fmt.Errorf("%w: %w", ErrReferenceUnavailable, err)
			}
			if !res.OK() {
				return fmt.Errorf("%w: GET %s returned status %d", ErrReferenceUnavailable, tgt.endpoint, res.Status)
			}
			*tgt.dst = res.Body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

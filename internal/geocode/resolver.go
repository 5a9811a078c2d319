package geocode

import (
	"context"
	"fmt"
)

// Resolver turns listing addresses into geolocations. Without a client it
// runs in manual mode and trusts the coordinates the user entered.
type Resolver struct {
	client *Client
}

// NewResolver creates a resolver. A nil client disables lookups.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// Enabled reports whether addresses are looked up over the network.
func (r *Resolver) Enabled() bool {
	return r != nil && r.client != nil
}

// Resolve returns the geolocation and canonical address for address. In
// manual mode it returns manual and address unchanged.
func (r *Resolver) Resolve(ctx context.Context, address string, manual Point) (Result, error) {
	if !r.Enabled() {
		return Result{Point: manual, Address: address}, nil
	}

	res, err := r.client.Lookup(ctx, address)
	if err != nil {
		return Result{}, fmt.Errorf("geocoding address: %w", err)
	}
	return *res, nil
}

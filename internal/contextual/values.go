// Package contextual carries the identified system through a context.Context.
package contextual

import (
	"context"

	"github.com/er2/macos-utilities/internal/system"
)

type contextKey int

const (
	// productKey is used to set and retrieve context held values for Product.
	productKey contextKey = iota
	// machineKey is used to set and retrieve context held values for Machine.
	machineKey
)

// WithProduct extends the context to provide a Product.
func WithProduct(ctx context.Context, product *system.Product) context.Context {
	return context.WithValue(ctx, productKey, product)
}

// Product fetches the system's Product provided in ctx.
func Product(ctx context.Context) *system.Product {
	if val := ctx.Value(productKey); val != nil {
		if v, ok := val.(*system.Product); ok {
			return v
		}
		panic("incoherent context")
	}

	return nil
}

// WithMachine extends the context to provide the Machine being serviced.
func WithMachine(ctx context.Context, machine *system.Machine) context.Context {
	return context.WithValue(ctx, machineKey, machine)
}

// Machine fetches the Machine provided in ctx.
func Machine(ctx context.Context) *system.Machine {
	if val := ctx.Value(machineKey); val != nil {
		if v, ok := val.(*system.Machine); ok {
			return v
		}
		panic("incoherent context")
	}

	return nil
}

package contextual

import (
	"context"
	"testing"

	"github.com/er2/macos-utilities/internal/system"

	"github.com/stretchr/testify/assert"
)

func TestProduct(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Product(ctx))

	p := &system.Product{Release: system.Catalina}
	assert.Same(t, p, Product(WithProduct(ctx, p)))
}

func TestMachine(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Machine(ctx))

	m := &system.Machine{ModelIdentifier: "iMac14,2"}
	ctx = WithMachine(WithProduct(ctx, &system.Product{}), m)
	assert.Same(t, m, Machine(ctx))
	assert.NotNil(t, Product(ctx), "values should not clobber each other")
}

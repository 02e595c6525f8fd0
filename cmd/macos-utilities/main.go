package main

import (
	"context"
	"fmt"
	"os"

	"github.com/er2/macos-utilities/internal/cmd"
	"github.com/er2/macos-utilities/internal/contextual"
	"github.com/er2/macos-utilities/internal/system"
)

func main() {
	ctx := context.Background()

	sys, err := system.Scan(ctx)
	if err != nil {
		panic(fmt.Errorf("cannot identify system: %w", err))
	}
	p := sys.Product()
	if p == nil {
		panic("no product associated with identified system")
	}

	ctx = contextual.WithProduct(ctx, p)
	if m := sys.Machine(); m != nil {
		ctx = contextual.WithMachine(ctx, m)
	}

	if err := cmd.MainCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// Command ipsmap prepares the IPS / abstention map data from the source files.
//
// Usage:
//
//	ipsmap options
//	ipsmap render --year 2022 --election 2022_pres_t1 --format table
//	ipsmap render --type Collège --format geojson --markers markers.geojson
//	ipsmap validate
//	ipsmap watch --year 2022 --election 2022_pres_t1
//
// Settings come from --config (YAML), IPSMAP_* environment variables and flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command grumeter runs a carbon calculation against the Grumeter API from
// the command line: it opens a session, saves the routes and stays given as
// flags, and prints the result.
//
//	grumeter --participants 2 \
//	    --route Seoul:Busan:train \
//	    --stay hotel_4:2025-06-01:2025-06-03
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkordes/grumeter/internal/calculator"
	"github.com/pkordes/grumeter/internal/config"
	"github.com/pkordes/grumeter/internal/domain"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "grumeter: configuration error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "grumeter:", message(err))
		os.Exit(1)
	}
}

// message picks the text shown for err. Flag mistakes and unknown names are
// reported verbatim; everything else goes through the calculator's wording.
func message(err error) string {
	if errors.Is(err, errUsage) || errors.Is(err, domain.ErrNotFound) {
		return err.Error()
	}
	return calculator.UserMessage(err)
}

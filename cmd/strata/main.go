// Command strata evaluates flatten, splice, set algebra and iterator chains
// over sparse stores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/strata/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}

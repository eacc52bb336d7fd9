// Command scanbayd runs the scanbay daemon without the CLI wrapper. It loads
// the default configuration and blocks until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"os"

	"scanbay/internal/config"
	"scanbay/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

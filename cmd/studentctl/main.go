// Command studentctl manages the student registry from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/music-school-hub/student-registry/internal/interface/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintf(os.Stderr, "studentctl: %v\n", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}

// Command bookchunk chunks textbooks from the command line, without the
// HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bookchunk",
		Short:         "Split textbooks into embedded, chapter-tagged chunks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")
	cmd.AddCommand(newChunkCommand())
	cmd.AddCommand(newTOCCommand())
	return cmd
}

package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localrivet/editormcp/transport/stdio"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay stdio JSON-RPC to a running server",
	Long: `Relay newline-delimited JSON-RPC requests from stdin to a running
server and write each response to stdout. Use this as the command of an MCP
host that launches stdio servers. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&callHost, "host", "127.0.0.1", "Server host")
	bridgeCmd.Flags().BoolVar(&callHTTP, "http", false, "Frame requests as HTTP POST")
	bridgeCmd.Flags().DurationVar(&callTimeout, "timeout", stdio.DefaultRequestTimeout, "Request timeout")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	b := stdio.NewBridgeWithIO(cmd.InOrStdin(), cmd.OutOrStdout(), c)
	b.SetLogger(newLogger(loaded))
	b.SetRequestTimeout(callTimeout)
	if err := b.Start(); err != nil {
		return err
	}

	select {
	case <-b.Done():
		return b.Err()
	case <-ctx.Done():
		return b.Stop()
	}
}

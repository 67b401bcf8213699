package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Fetch one memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}
	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	c, err := openClient(cmd)
	if err != nil {
		exitErr("open client", err)
	}
	defer c.Close()

	record, err := c.Get(cmd.Context(), args[0], callOpts()...)
	if err != nil {
		exitErr("get", err)
	}
	printJSON(record)
}

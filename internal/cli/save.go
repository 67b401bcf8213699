package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [text]",
		Short: "Save text as a structured memory",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSave,
	}
	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	c, err := openClient(cmd)
	if err != nil {
		exitErr("open client", err)
	}
	defer c.Close()

	record, err := c.Save(cmd.Context(), strings.Join(args, " "), callOpts()...)
	if err != nil {
		exitErr("save", err)
	}
	printJSON(record)
}

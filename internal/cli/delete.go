package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one memory permanently",
		Args:  cobra.ExactArgs(1),
		Run:   runDelete,
	}
	RootCmd.AddCommand(del)

	all := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every memory of the owner",
		Args:  cobra.NoArgs,
		Run:   runDeleteAll,
	}
	RootCmd.AddCommand(all)
}

func runDelete(cmd *cobra.Command, args []string) {
	c, err := openClient(cmd)
	if err != nil {
		exitErr("open client", err)
	}
	defer c.Close()

	if err := c.Delete(cmd.Context(), args[0], callOpts()...); err != nil {
		exitErr("delete", err)
	}
	fmt.Println("deleted", args[0])
}

func runDeleteAll(cmd *cobra.Command, _ []string) {
	c, err := openClient(cmd)
	if err != nil {
		exitErr("open client", err)
	}
	defer c.Close()

	count, err := c.DeleteAll(cmd.Context(), callOpts()...)
	if err != nil {
		exitErr("delete-all", err)
	}
	fmt.Printf("deleted %d memories\n", count)
}

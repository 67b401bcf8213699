package cli

import (
	"strings"

	"github.com/spf13/cobra"

	recall "github.com/recallio/recall-go"
)

func init() {
	cmd := &cobra.Command{
		Use:   "similar [text]",
		Short: "Find memories semantically similar to the given text",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSimilar,
	}
	cmd.Flags().Float64("min", 0.7, "Minimum similarity in [0,1]")
	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().String("filter", "", "Filter expression")
	RootCmd.AddCommand(cmd)
}

func runSimilar(cmd *cobra.Command, args []string) {
	min, _ := cmd.Flags().GetFloat64("min")
	limit, _ := cmd.Flags().GetInt("limit")
	filter, _ := cmd.Flags().GetString("filter")

	c, err := openClient(cmd)
	if err != nil {
		exitErr("open client", err)
	}
	defer c.Close()

	results, err := c.FindSimilar(cmd.Context(), recall.SimilarRequest{
		Text:          strings.Join(args, " "),
		MinSimilarity: min,
		Limit:         limit,
		Filter:        filter,
	}, callOpts()...)
	if err != nil {
		exitErr("similar", err)
	}
	printJSON(results)
}

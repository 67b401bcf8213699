package cli

import (
	"strings"

	"github.com/spf13/cobra"

	recall "github.com/recallio/recall-go"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by text and structured filters",
		Run:   runSearch,
	}
	cmd.Flags().String("filter", "", `Filter expression, e.g. 'tone == "joyful" && "coffee" in tags'`)
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Int("offset", 0, "Pagination offset")
	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	filter, _ := cmd.Flags().GetString("filter")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	c, err := openClient(cmd)
	if err != nil {
		exitErr("open client", err)
	}
	defer c.Close()

	results, err := c.Search(cmd.Context(), recall.SearchRequest{
		Query:  strings.Join(args, " "),
		Filter: filter,
		Limit:  limit,
		Offset: offset,
	}, callOpts()...)
	if err != nil {
		exitErr("search", err)
	}
	printJSON(results)
}

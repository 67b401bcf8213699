// Package cli implements the recall CLI commands, a thin shell over the
// SDK client.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	recall "github.com/recallio/recall-go"
)

var (
	configPath string
	ownerFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Turn free-form text into structured, searchable memories",
	Long:  "recall saves free-form text as structured memory records: extracted, embedded, and searchable by meaning.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: RECALL_* environment only)")
	RootCmd.PersistentFlags().StringVarP(&ownerFlag, "owner", "o", "", "Owner id (overrides configured default)")
}

func openClient(cmd *cobra.Command) (*recall.Client, error) {
	cfg, err := recall.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return recall.New(cmd.Context(), cfg)
}

func callOpts() []recall.Option {
	if ownerFlag != "" {
		return []recall.Option{recall.WithOwner(ownerFlag)}
	}
	return nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

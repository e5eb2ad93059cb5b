package main

import (
	"github.com/spf13/cobra"

	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

var townsCmd = &cobra.Command{
	Use:   "towns",
	Short: "Inspect the canonical town catalog",
}

type resolution struct {
	Input        string `json:"input"`
	Town         string `json:"town,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	Resolved     bool   `json:"resolved"`
}

var townsResolveCmd = &cobra.Command{
	Use:   "resolve <name or album title>...",
	Short: "Show how raw names and album titles map to canonical towns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := towns.Default()
		out := make([]resolution, 0, len(args))
		for _, arg := range args {
			parsed := catalog.ParseAlbumTitle(arg)
			name, ok := catalog.Resolve(parsed.Town)
			res := resolution{Input: arg, Photographer: parsed.Photographer, Resolved: ok}
			if ok {
				res.Town = name
			}
			out = append(out, res)
		}
		return printJSON(cmd, out)
	},
}

var townsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List canonical towns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, towns.Default().All())
	},
}

func init() {
	townsCmd.AddCommand(townsResolveCmd, townsListCmd)
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scenesCmd = &cobra.Command{
	Use:   "scenes [scene-id]",
	Short: "List assets recorded in the download index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenes,
}

func init() {
	scenesCmd.Flags().String("index", "", "index database path")
}

func runScenes(cmd *cobra.Command, args []string) error {
	// listing always reads the index, even when fetches do not record to it
	viper.Set("index.enabled", true)

	a, err := newApp(cmd, map[string]string{"index.path": "index"})
	if err != nil {
		return err
	}
	defer closeApp(a)

	sceneID := ""
	if len(args) == 1 {
		sceneID = args[0]
	}
	records, err := a.Index.List(cmd.Context(), sceneID)
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), outputFormat, records, func() string {
		if len(records) == 0 {
			return "no downloads recorded"
		}
		return assetsTable(records)
	})
}

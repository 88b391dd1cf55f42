package main

import (
	"github.com/spf13/cobra"
)

var itemCmd = &cobra.Command{
	Use:   "item <item-id>",
	Short: "Show one STAC item and its band assets",
	Args:  cobra.ExactArgs(1),
	RunE:  runItem,
}

func init() {
	itemCmd.Flags().String("collection", "", "STAC collection (default from config)")
}

func runItem(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, map[string]string{"stac.collection": "collection"})
	if err != nil {
		return err
	}
	defer closeApp(a)

	item, err := a.Scenes.Item(cmd.Context(), a.Config.STAC.Collection, args[0])
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), outputFormat, item, func() string { return itemTable(*item) })
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobrunner/landsatlook/internal/domain"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the STAC catalog for scenes",
	Example: `  landsatlook search --bbox -122.5,37.5,-122,38 --datetime 2024-01-01/2024-02-01 --cloud 20
  landsatlook search --ids LC09_L2SP_044034_20240105_20240106_02_T1 -o json`,
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd, 50)
}

func addSearchFlags(cmd *cobra.Command, maxItems int) {
	f := cmd.Flags()
	f.String("collection", "", "STAC collection (default from config)")
	f.String("bbox", "", "bounding box minx,miny,maxx,maxy in WGS84")
	f.String("datetime", "", "RFC 3339 datetime or interval (start/end, .. for open ends)")
	f.Float64("cloud", -1, "maximum cloud cover percentage")
	f.StringSlice("ids", nil, "item ids")
	f.Int("limit", 0, "page size")
	f.Int("max-items", maxItems, "maximum number of items to return (0 for all)")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, map[string]string{"stac.collection": "collection"})
	if err != nil {
		return err
	}
	defer closeApp(a)

	params, err := searchParams(cmd, a.Config.STAC.Collection)
	if err != nil {
		return err
	}

	items, err := a.Scenes.Search(cmd.Context(), params)
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), outputFormat, items, func() string {
		if len(items) == 0 {
			return "no scenes found"
		}
		return itemsTable(items) + fmt.Sprintf("\n%d scene(s)", len(items))
	})
}

// searchParams reads the search flags shared by search and follow.
func searchParams(cmd *cobra.Command, collection string) (domain.SearchParams, error) {
	f := cmd.Flags()
	params := domain.SearchParams{}
	if collection != "" {
		params.Collections = []string{collection}
	}

	if s, _ := f.GetString("bbox"); strings.TrimSpace(s) != "" {
		bbox, err := domain.ParseBBox(s)
		if err != nil {
			return params, err
		}
		params.BBox = bbox
	}
	params.Datetime, _ = f.GetString("datetime")
	params.IDs, _ = f.GetStringSlice("ids")
	params.Limit, _ = f.GetInt("limit")
	params.MaxItems, _ = f.GetInt("max-items")
	if f.Changed("cloud") {
		cloud, _ := f.GetFloat64("cloud")
		params.MaxCloudCover = &cloud
	}

	return params, params.Validate()
}

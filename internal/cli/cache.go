package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the page cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil {
			return fmt.Errorf("application not initialized")
		}
		if a.Cache == nil {
			fmt.Println("Cache is disabled, nothing to clear")
			return nil
		}
		if err := a.Cache.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Printf("%s cache cleared (%s)\n", ui.Success("✓"), a.Config.CacheDir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

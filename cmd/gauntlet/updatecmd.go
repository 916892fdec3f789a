package gauntlet

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gauntletsec/gauntlet/internal/update"
)

func init() {
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update gauntlet to the latest release",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := selfUpdate(); err != nil {
				return fmt.Errorf("self-update failed: %w", err)
			}
			fmt.Println("gauntlet is up to date")
			return nil
		},
	}
	rootCmd.AddCommand(updateCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the gauntlet version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("gauntlet", version)
			if !flagNoUpdateCheck {
				if latest, newer, _ := update.Check(version, false); newer && latest != "" {
					fmt.Printf("(new version available: v%s)\n", latest)
				}
			}
		},
	}
	rootCmd.AddCommand(versionCmd)
}

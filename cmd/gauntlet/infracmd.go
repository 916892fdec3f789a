package gauntlet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gauntletsec/gauntlet/internal/infra"
)

func init() {
	infraCmd := &cobra.Command{Use: "infra", Short: "Inspect and destroy provisioned scan infrastructure"}
	rootCmd.AddCommand(infraCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the most recently provisioned scan infrastructure",
		RunE:  runInfraStatus,
	}
	infraCmd.AddCommand(statusCmd)

	destroyCmd := &cobra.Command{
		Use:   "destroy",
		Short: "Tear down the most recently provisioned scan infrastructure",
		RunE:  runInfraDestroy,
	}
	infraCmd.AddCommand(destroyCmd)
}

func runInfraStatus(_ *cobra.Command, _ []string) error {
	st, path, err := infra.Discover(stateDir())
	if errors.Is(err, infra.ErrNoState) {
		fmt.Println("No provisioned infrastructure.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("Record:   ", path)
	fmt.Println("Provider: ", st.Provider)
	fmt.Println("Created:  ", st.Timestamp)
	fmt.Println("Workspace:", st.WorkspaceDir)
	if st.EndpointURL != "" {
		fmt.Println("Endpoint: ", st.EndpointURL)
	}
	for k, v := range st.Outputs {
		fmt.Printf("Output %s = %s\n", k, v)
	}
	return nil
}

func runInfraDestroy(_ *cobra.Command, _ []string) error {
	st, _, err := infra.Discover(stateDir())
	if errors.Is(err, infra.ErrNoState) {
		fmt.Println("No provisioned infrastructure.")
		return nil
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := infraDriver().Teardown(ctx, st); err != nil {
		return err
	}
	fmt.Printf("Destroyed %s infrastructure from %s.\n", st.Provider, st.Timestamp)
	return nil
}

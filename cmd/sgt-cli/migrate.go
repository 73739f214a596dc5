package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/estudio-sgt/sgt-api/pkg/database"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(newMigrateUpCommand(), newMigrateDownCommand(), newMigrateStatusCommand(), newMigrateForceCommand())
	return cmd
}

func migratorFor(cmd *cobra.Command) (*database.Migrator, *cliContext, error) {
	cc, err := mustContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	return database.NewMigrator(cc.Config.Migrations.Path, database.URL(cc.Config.Database)), cc, nil
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, cc, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
			cc.Logger.Info("migrations applied")
			return printStatus(cmd, m)
		},
	}
}

func newMigrateDownCommand() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be greater than 0")
			}
			m, cc, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			cc.Logger.Info("migrations rolled back")
			return printStatus(cmd, m)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			return printStatus(cmd, m)
		},
	}
}

func newMigrateForceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			m, cc, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return err
			}
			cc.Logger.Warn("schema version forced")
			return printStatus(cmd, m)
		},
	}
}

func parseVersion(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil || v < -1 {
		return 0, fmt.Errorf("invalid version %q", raw)
	}
	return v, nil
}

func printStatus(cmd *cobra.Command, m *database.Migrator) error {
	state, err := m.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", state.Version, state.Dirty)
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-grc/meridian/modules/compliance/infrastructure/persistence"
)

func newMigrateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|status>",
		Short: "Apply or inspect database migrations",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), env, args[0])
		},
	}
}

func runMigrate(ctx context.Context, env *cliEnv, action string) error {
	if action != "up" && action != "status" {
		return withCode(exitUsage, fmt.Errorf("unknown migrate action %q (expected up|status)", action))
	}
	conf, err := env.loadConfig()
	if err != nil {
		return err
	}
	db, closeDB, err := env.openDB(ctx, conf)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer closeDB()

	if action == "status" {
		if err := persistence.MigrationStatus(ctx, db, env.logger); err != nil {
			return withCode(exitDB, err)
		}
		return nil
	}

	if err := persistence.Migrate(ctx, db, env.logger); err != nil {
		return withCode(exitDBWrite, err)
	}
	version, err := persistence.MigrationVersion(ctx, db)
	if err != nil {
		return withCode(exitDB, err)
	}
	return env.emit("", map[string]int64{"version": version})
}

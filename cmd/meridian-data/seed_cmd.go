package main

import (
	"bytes"
	"context"

	"github.com/spf13/cobra"

	"github.com/meridian-grc/meridian/modules/compliance/services"
)

func newSeedCmd(env *cliEnv) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, business areas, outcomes and measures from YAML",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), env, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Seed YAML file (required)")
	return cmd
}

func runSeed(ctx context.Context, env *cliEnv, file string) error {
	data, err := readInput(file, "file")
	if err != nil {
		return err
	}
	seed, err := services.ParseSeed(bytes.NewReader(data))
	if err != nil {
		return withCode(exitValidation, err)
	}

	conf, err := env.loadConfig()
	if err != nil {
		return err
	}
	sess, err := env.connect(ctx, conf)
	if err != nil {
		return err
	}
	defer sess.close()

	svc := sess.app.Service(services.SeedService{}).(*services.SeedService)
	res, err := svc.Apply(sess.ctx, seed)
	if err != nil {
		return serviceExit(err, exitDBWrite)
	}
	return env.emit("", res)
}

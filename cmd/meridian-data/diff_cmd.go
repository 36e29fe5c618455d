package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meridian-grc/meridian/modules/compliance/diff"
	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/services"
)

type diffOptions struct {
	base        string
	compare     string
	report      string
	patch       bool
	noTextEdits bool
}

func newDiffCmd(env *cliEnv) *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two report snapshots (files or published version ids)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.base, "base", "", "Base snapshot file or version id (required)")
	cmd.Flags().StringVar(&opts.compare, "compare", "", "Compare snapshot file or version id (required)")
	cmd.Flags().StringVar(&opts.report, "report", "", "Report id both versions must belong to")
	cmd.Flags().BoolVar(&opts.patch, "patch", false, "Include an RFC 6902 content patch per modified section")
	cmd.Flags().BoolVar(&opts.noTextEdits, "no-text-edits", false, "Omit inline text edits for string fields")
	return cmd
}

func runDiff(ctx context.Context, env *cliEnv, opts diffOptions) error {
	if opts.base == "" || opts.compare == "" {
		return withCode(exitUsage, fmt.Errorf("--base and --compare are required"))
	}
	var diffOpts []diff.Option
	if opts.patch {
		diffOpts = append(diffOpts, diff.WithContentPatch())
	}
	if opts.noTextEdits {
		diffOpts = append(diffOpts, diff.WithoutTextEdits())
	}

	baseID, baseErr := uuid.Parse(opts.base)
	compareID, compareErr := uuid.Parse(opts.compare)
	if baseErr == nil && compareErr == nil {
		return diffVersions(ctx, env, opts.report, baseID, compareID, diffOpts)
	}

	base, err := readSnapshot(opts.base, "base")
	if err != nil {
		return err
	}
	compare, err := readSnapshot(opts.compare, "compare")
	if err != nil {
		return err
	}
	return env.emit("", diff.Compare(base, compare, diffOpts...))
}

func diffVersions(ctx context.Context, env *cliEnv, reportID string, baseID, compareID uuid.UUID, opts []diff.Option) error {
	conf, err := env.loadConfig()
	if err != nil {
		return err
	}
	sess, err := env.connect(ctx, conf)
	if err != nil {
		return err
	}
	defer sess.close()

	svc := sess.app.Service(services.ReportVersionService{}).(*services.ReportVersionService)
	cmp, err := svc.Compare(sess.ctx, reportID, baseID, compareID, opts...)
	if err != nil {
		return serviceExit(err, exitDB)
	}
	return env.emit("", cmp)
}

func readSnapshot(path, flag string) (domain.Snapshot, error) {
	data, err := readInput(path, flag)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := domain.ParseSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, withCode(exitValidation, fmt.Errorf("%s: %w", path, err))
	}
	return snap, nil
}

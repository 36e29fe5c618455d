package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/modules/compliance/services"
)

type importOptions struct {
	kind    string
	file    string
	output  string
	apply   bool
	mapping []string
}

func newImportCmd(env *cliEnv) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <controls|risks|measures|metrics>",
		Short: "Validate an import file and optionally commit it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.kind = args[0]
			return runImport(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "CSV or XLSX file to import (required)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Write the JSON result to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Commit valid rows (default is dry-run)")
	cmd.Flags().StringArrayVar(&opts.mapping, "map", nil, "Override a column mapping as field=Header (repeatable)")
	return cmd
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return withCode(exitUsage, fmt.Errorf("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args)))
		}
		return nil
	}
}

func parseMappingFlags(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		field, header, ok := strings.Cut(v, "=")
		field, header = strings.TrimSpace(field), strings.TrimSpace(header)
		if !ok || field == "" || header == "" {
			return nil, fmt.Errorf("invalid --map %q (expected field=Header)", v)
		}
		out[field] = header
	}
	return out, nil
}

func runImport(ctx context.Context, env *cliEnv, opts importOptions) error {
	kind, err := importer.ParseKind(opts.kind)
	if err != nil {
		return withCode(exitUsage, err)
	}
	mapping, err := parseMappingFlags(opts.mapping)
	if err != nil {
		return withCode(exitUsage, err)
	}
	data, err := readInput(opts.file, "file")
	if err != nil {
		return err
	}
	conf, err := env.loadConfig()
	if err != nil {
		return err
	}
	if limit := conf.Import.MaxBytes; limit > 0 && int64(len(data)) > limit {
		return withCode(exitValidation, fmt.Errorf("%s is %d bytes (max %d)", opts.file, len(data), limit))
	}
	table, err := importer.DecodeUpload(data)
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("%s: %w", opts.file, err))
	}

	sess, err := env.connect(ctx, conf)
	if err != nil {
		return err
	}
	defer sess.close()

	svc := sess.app.Service(services.ImportService{}).(*services.ImportService)
	v, err := svc.Validate(sess.ctx, services.ImportRequest{Kind: kind, Table: table, Mapping: mapping})
	if err != nil {
		return serviceExit(err, exitDB)
	}

	if !opts.apply || !v.Valid {
		if err := env.emit(opts.output, v.Preview); err != nil {
			return err
		}
		if !v.Valid {
			return withCode(exitValidation, fmt.Errorf("%s: %d row error(s)", opts.file, len(v.Errors)))
		}
		return nil
	}

	res, err := svc.Commit(sess.ctx, v)
	if err != nil {
		return serviceExit(err, exitDBWrite)
	}
	return env.emit(opts.output, res)
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridian-grc/meridian/modules/compliance/importer"
)

type templateOptions struct {
	kind   string
	format string
	out    string
}

func newTemplateCmd(env *cliEnv) *cobra.Command {
	var opts templateOptions

	cmd := &cobra.Command{
		Use:   "template <controls|risks|measures|metrics>",
		Short: "Write an import template with a header and an example row",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.kind = args[0]
			return runTemplate(env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "csv", "Template format: csv or xlsx")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output file (csv defaults to stdout)")
	return cmd
}

func runTemplate(env *cliEnv, opts templateOptions) error {
	kind, err := importer.ParseKind(opts.kind)
	if err != nil {
		return withCode(exitUsage, err)
	}
	format, err := importer.ParseTemplateFormat(opts.format)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if format == importer.FormatXLSX && opts.out == "" {
		return withCode(exitUsage, fmt.Errorf("--out is required for xlsx"))
	}

	data, err := importer.Template(kind, format, time.Now())
	if err != nil {
		return err
	}
	if opts.out == "" {
		_, err := env.out.Write(data)
		return err
	}
	return writeFile(opts.out, data)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/skosovsky/aibridge/catalog"
)

// ErrNoInput is returned when a command is run without catalog files.
var ErrNoInput = errors.New("aibridge-catalog: at least one catalog file is required")

// Execute runs the root command with args, writing reports to out.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	cmd := &cli.Command{
		Name:   "aibridge-catalog",
		Usage:  "validate and compile aibridge model catalogs",
		Writer: out,
		Commands: []*cli.Command{
			validateCommand(out),
			genCommand(out),
		},
	}
	return cmd.Run(ctx, args)
}

func validateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "parse and validate catalog files",
		ArgsUsage: "<file>...",
		Action: func(_ context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				return ErrNoInput
			}
			var errs []error
			for _, path := range files {
				c, err := catalog.ParseFile(path)
				if err != nil {
					_, _ = fmt.Fprintf(out, "%s: %v\n", path, err)
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				_, _ = fmt.Fprintf(out, "%s: ok (%s, %d models)\n", path, c.Vendor, len(c.Models))
			}
			return errors.Join(errs...)
		},
	}
}

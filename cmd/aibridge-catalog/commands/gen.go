package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/urfave/cli/v3"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/catalog"
)

const aibridgePath = "github.com/skosovsky/aibridge"

func genCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "gen",
		Usage:     "compile catalogs into a Go map of model configs",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "o", Usage: "output file", Required: true},
			&cli.StringFlag{Name: "pkg", Usage: "package name of the generated file", Value: "models"},
			&cli.StringFlag{Name: "var", Usage: "name of the generated variable", Value: "Models"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				return ErrNoInput
			}
			catalogs := make([]*catalog.Catalog, 0, len(files))
			for _, path := range files {
				c, err := catalog.ParseFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				catalogs = append(catalogs, c)
			}
			f := Generate(cmd.String("pkg"), cmd.String("var"), catalogs)
			if err := f.Save(cmd.String("o")); err != nil {
				return fmt.Errorf("aibridge-catalog: write %s: %w", cmd.String("o"), err)
			}
			_, _ = fmt.Fprintf(out, "wrote %s\n", cmd.String("o"))
			return nil
		},
	}
}

// Generate builds a file declaring name as map[vendor]map[modelID]aibridge.ModelConfig.
func Generate(pkg, name string, catalogs []*catalog.Catalog) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by aibridge-catalog. DO NOT EDIT.")
	f.Commentf("%s holds the compiled model catalogs of %s, keyed by vendor and model id.", name, vendors(catalogs))
	f.Var().Id(name).Op("=").Map(jen.String()).Map(jen.String()).Qual(aibridgePath, "ModelConfig").Values(
		jen.DictFunc(func(d jen.Dict) {
			for _, c := range catalogs {
				d[jen.Lit(c.Vendor)] = jen.Values(jen.DictFunc(func(m jen.Dict) {
					for _, model := range c.Models {
						m[jen.Lit(model.ID)] = modelValue(model)
					}
				}))
			}
		}),
	)
	return f
}

func modelValue(m aibridge.ModelConfig) jen.Code {
	fields := jen.Dict{jen.Id("ID"): jen.Lit(m.ID)}
	if m.IsVision {
		fields[jen.Id("IsVision")] = jen.True()
	}
	if m.IsImageGeneration {
		fields[jen.Id("IsImageGeneration")] = jen.True()
	}
	if m.IsThinking {
		fields[jen.Id("IsThinking")] = jen.True()
	}
	cost := func(field string, v *float64) {
		if v != nil {
			fields[jen.Id(field)] = jen.Qual(aibridgePath, "Float64").Call(jen.Lit(*v))
		}
	}
	cost("InputTokenCost", m.InputTokenCost)
	cost("OutputTokenCost", m.OutputTokenCost)
	cost("ImageOutputTokenCost", m.ImageOutputTokenCost)
	cost("WebSearchCost", m.WebSearchCost)
	return jen.Values(fields)
}

func vendors(catalogs []*catalog.Catalog) string {
	names := make([]string, len(catalogs))
	for i, c := range catalogs {
		names[i] = c.Vendor
	}
	return strings.Join(names, ", ")
}


package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/jobflow/internal/catalog"
	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/diagram"
	"github.com/rendis/jobflow/internal/expressions"
	"github.com/rendis/jobflow/internal/flow"
	"github.com/rendis/jobflow/internal/forms"
	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/internal/validation"
	"github.com/rendis/jobflow/pkg/schema"
)

// offlineCatalog builds the built-in catalog merged with the configured
// catalog files, validated and installed into a fresh registry. Commands
// that work on files use it instead of the store.
func (a *app) offlineCatalog() (*catalog.Catalog, *nodetypes.Registry, error) {
	cat, err := catalog.Builtin()
	if err != nil {
		return nil, nil, err
	}
	for _, f := range a.cfg.CatalogFiles {
		extra, err := catalog.LoadFile(f)
		if err != nil {
			return nil, nil, err
		}
		cat.Merge(extra)
	}
	jsv, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, nil, err
	}
	eval, err := expressions.NewEvaluator()
	if err != nil {
		return nil, nil, err
	}
	if err := cat.Validate(jsv, forms.NewEngine(eval)); err != nil {
		return nil, nil, err
	}
	reg := nodetypes.NewRegistry()
	if err := cat.Install(reg); err != nil {
		return nil, nil, err
	}
	return cat, reg, nil
}

// readDocument reads a document file ("-" for stdin) and checks it against
// the document schema before decoding.
func readDocument(cmd *cobra.Command, path string) (*schema.Document, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	jsv, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	if err := jsv.ValidateDocumentJSON(raw); err != nil {
		return nil, err
	}
	return schema.ParseDocument(raw)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := a.offlineCatalog()
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			// A scratch editor load runs the schema, reference and port checks.
			ed, err := designer.NewEditor(reg, designer.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if err := ed.LoadDocument(doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d cells)\n", args[0], len(doc.Cells))
			return nil
		},
	}
}

func (a *app) compileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a flow document and print the flow as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := a.offlineCatalog()
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			c, err := flow.NewCompiler(reg)
			if err != nil {
				return err
			}
			f, err := c.Compile(doc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), f)
		},
	}
}

func (a *app) diagramCommand() *cobra.Command {
	var (
		format string
		out    string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "diagram FILE",
		Short: "Render a flow document as mermaid, SVG or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := diagram.ParseFormat(format)
			if err != nil {
				return err
			}
			_, reg, err := a.offlineCatalog()
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			model, err := diagram.Build(doc, reg)
			if err != nil {
				return err
			}
			model.Title = title
			data, err := diagram.Render(cmd.Context(), model, f)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "format", "mermaid", "output format: mermaid, svg, png")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&title, "title", "", "diagram title")
	return cmd
}

func (a *app) catalogCommand() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the node type palette as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.CatalogFiles = append(a.cfg.CatalogFiles, files...)
			cat, reg, err := a.offlineCatalog()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cat.Palette(reg))
		},
	}
	cmd.Flags().StringSliceVar(&files, "file", nil, "extra catalog file to merge")
	return cmd
}

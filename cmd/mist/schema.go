package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

type schemaOptions struct {
	outDir string
}

func newSchemaCmd(root *rootFlags) *cobra.Command {
	opts := &schemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema [SCHEMA-ID...]",
		Short: "Export JSON Schemas for the JSON wire form of messages",
		Long: "Print the JSON Schema for each SCHEMA-ID. With --out every schema is\n" +
			"written to DIR/<schema-id>.<version>.json instead; when no SCHEMA-ID\n" +
			"is given all schemas of the configured specification are exported.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, spec, err := root.specification()
			if err != nil {
				return err
			}
			if opts.outDir == "" {
				if len(args) == 0 {
					return errors.WrapInvalid(errors.Newf(errors.ErrInvalidConfigValue,
						"a schema ID is required without --out"), "mist", "schema", "check arguments")
				}
				for _, id := range args {
					doc, err := spec.JSONSchema(id)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				}
				return nil
			}
			return exportSchemas(cmd, spec, opts.outDir, args)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Write schemas into this directory")
	return cmd
}

func exportSchemas(cmd *cobra.Command, spec *mist.Specification, dir string, ids []string) error {
	all := len(ids) == 0
	if all {
		for it := spec.SchemaIDs(); it.HasNext(); {
			ids = append(ids, it.Next())
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapFatal(err, "mist", "schema", "create output directory")
	}

	written := 0
	for _, id := range ids {
		doc, err := spec.JSONSchema(id)
		if err != nil {
			// Directory entries without a message kind, such as the header
			// templates, have no wire schema of their own.
			if all {
				slog.Default().Debug("Skipping schema", "schema_id", id, "error", err)
				continue
			}
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.%d.json", id, spec.Version()))
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			return errors.WrapFatal(err, "mist", "schema", "write "+path)
		}
		written++
	}
	cmd.Printf("Wrote %d schemas to %s\n", written, dir)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

type listOptions struct {
	jsonOutput bool
	level      int
	byLevel    bool
}

type schemaEntry struct {
	ID          string `json:"id"`
	Level       int    `json:"level"`
	Description string `json:"description,omitempty"`
}

func newListCmd(root *rootFlags) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the schema IDs of the configured specification",
		Long: "List the schema IDs available at the configured schema level. With\n" +
			"--level only the directory entries defined at exactly that level are\n" +
			"listed, whatever the configured level.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, spec, err := root.specification()
			if err != nil {
				return err
			}
			opts.byLevel = cmd.Flags().Changed("level")
			return runList(cmd, spec, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().IntVar(&opts.level, "level", 0, "List only the schemas defined at this level (0-6)")
	return cmd
}

func runList(cmd *cobra.Command, spec *mist.Specification, opts *listOptions) error {
	entries := make([]schemaEntry, 0)
	dir := spec.Directory()
	level := spec.SchemaLevel()
	if opts.byLevel {
		level = mist.SchemaLevel(opts.level)
		if !level.Valid() {
			return errors.WrapInvalid(errors.Newf(errors.ErrInvalidConfigValue,
				"level %d outside 0..%d", opts.level, int(mist.MaxSchemaLevel)), "mist", "list", "check --level")
		}
		for _, st := range dir.SchemasAt(level) {
			entries = append(entries, schemaEntry{ID: st.ID, Level: int(st.Level), Description: st.Description})
		}
	} else {
		for it := spec.SchemaIDs(); it.HasNext(); {
			id := it.Next()
			entry := schemaEntry{ID: id}
			if st, ok := dir.Lookup(id, level); ok {
				entry.Level = int(st.Level)
				entry.Description = st.Description
			}
			entries = append(entries, entry)
		}
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	fmt.Fprintf(out, "Specification %d, schema level %d (%s)\n\n",
		spec.Version(), int(level), dir.LevelName(level))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEMA ID\tLEVEL\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", e.ID, e.Level, e.Description)
	}
	return w.Flush()
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type templateOptions struct {
	subject string
	fields  bool
}

func newTemplateCmd(root *rootFlags) *cobra.Command {
	opts := &templateOptions{}

	cmd := &cobra.Command{
		Use:   "template SCHEMA-ID",
		Short: "Print the message template for a schema ID",
		Long: "Print a sample message for SCHEMA-ID. Aliases such as HB or RSRC are\n" +
			"accepted. With --fields the header and body field templates are listed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, spec, err := root.specification()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !opts.fields {
				xml, err := spec.TemplateXML(opts.subject, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, xml)
				return nil
			}

			mt, err := spec.MessageTemplate(args[0])
			if err != nil {
				return err
			}
			kind, err := mt.Kind()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s (%s, level %d)\n", mt.SchemaID(), kind, int(mt.Level()))
			for _, ft := range spec.HeaderFieldTemplates(kind) {
				fmt.Fprintf(out, "  H %-24s %-10s %s\n", ft.Name(), ft.Mode(), strings.Join(ft.Types(), " "))
			}
			for _, ft := range mt.FieldTemplates() {
				fmt.Fprintf(out, "    %-24s %-10s %s\n", ft.Name(), ft.Mode(), strings.Join(ft.Types(), " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Subject to place in the rendered message")
	cmd.Flags().BoolVar(&opts.fields, "fields", false, "List field templates instead of rendering XML")
	return cmd
}

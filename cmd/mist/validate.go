package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate messages stored as JSON or XML",
		Long: "Validate each FILE against the configured specification. Files ending\n" +
			"in .xml are read as GMSEC XML, everything else as JSON. Every problem\n" +
			"is printed; the command fails if any message is invalid.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, spec, err := root.specification()
			if err != nil {
				return err
			}

			// Files are checked concurrently; reports print in argument order.
			reports := make([]string, len(args))
			ok := make([]bool, len(args))
			var g errgroup.Group
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, path := range args {
				g.Go(func() error {
					reports[i], ok[i] = validateFile(spec, path)
					return nil
				})
			}
			_ = g.Wait()

			invalid := 0
			for i, report := range reports {
				fmt.Fprint(cmd.OutOrStdout(), report)
				if !ok[i] {
					invalid++
				}
			}
			if invalid > 0 {
				return errors.Newf(errors.ErrMessageValidation, "%d of %d messages invalid", invalid, len(args))
			}
			return nil
		},
	}
}

func readMessage(path string) (*message.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return message.FromXML(data)
	}
	return message.FromJSON(data)
}

func validateFile(spec *mist.Specification, path string) (string, bool) {
	var out strings.Builder

	msg, err := readMessage(path)
	if err != nil {
		fmt.Fprintf(&out, "%s: unreadable: %v\n", path, err)
		return out.String(), false
	}

	err = spec.ValidateMessage(msg)
	if err == nil {
		id, _ := spec.SchemaID(msg)
		fmt.Fprintf(&out, "%s: valid %s\n", path, id)
		return out.String(), true
	}

	var ve *mist.ValidationError
	if !errors.As(err, &ve) {
		fmt.Fprintf(&out, "%s: %v\n", path, err)
		return out.String(), false
	}
	fmt.Fprintf(&out, "%s: invalid %s (%d problems)\n", path, ve.SchemaID, len(ve.Problems))
	for _, p := range ve.Problems {
		fmt.Fprintf(&out, "  - %s\n", p)
	}
	return out.String(), false
}

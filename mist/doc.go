// Package mist loads GMSEC message definitions and validates messages
// against them.
//
// A Specification is built from a configuration naming the specification
// version (default 201900), the schema level (0 through 6) and optionally
// a directory of definitions; without one the definitions embedded in the
// templates package are used.
//
//	spec, err := mist.New(config.NewFromArgs([]string{"gmsec-schema-level=1"}))
//	if err != nil {
//		return err
//	}
//	if err := spec.ValidateMessage(msg); err != nil {
//		var ve *mist.ValidationError
//		if errors.As(err, &ve) {
//			for _, p := range ve.Problems {
//				log.Println(p)
//			}
//		}
//	}
//
// # Definitions
//
// Each version directory holds DIRECTORY.xml, which names the header file
// of every level and maps schema IDs to template files. A template at a
// higher level replaces the template with the same ID from a lower level.
// Field declarations may be grouped in ARRAY blocks, whose children are
// repeated for index 1 through the value of the SIZE field, and in
// CONTAINER blocks, whose children are checked with a name prefix.
// INCLUDE pulls in a FRAGMENT file relative to the including file.
//
// # Validation
//
// The schema ID of a message is taken from its MESSAGE-TYPE and
// MESSAGE-SUBTYPE fields when they name a loaded template, otherwise from
// its subject. The first decision for a subject is remembered. Every
// problem found is collected into one *ValidationError, which matches
// errors.ErrMessageValidation.
//
// Field templates are never modified by validation: dependencies are
// evaluated into a ResolvedField per message, so one Specification can
// validate from many goroutines.
package mist

// Package errors provides standardized error handling for the GMSEC
// specification engine, the connection manager and the status services.
//
// # Overview
//
// Errors carry two independent labels:
//
//   - A class (Transient, Invalid, Fatal) that drives retry decisions.
//     The connection manager only retries transient connect failures.
//   - A GMSEC code (SCHEMA_NOT_FOUND, INVALID_CONFIG_VALUE, ...) that tells
//     callers which kind of failure happened without inspecting strings.
//
// # Quick Start
//
// Return a sentinel with a formatted reason:
//
//	return errors.Newf(errors.ErrSchemaNotFound, "schema %q is not registered", id)
//
// Wrap with component context:
//
//	if err := loader.Load(); err != nil {
//	    return errors.WrapFatal(err, "Specification", "New", "load templates")
//	}
//
// Recover the code:
//
//	switch errors.CodeOf(err) {
//	case errors.CodeMessageValidation:
//	    // inspect *mist.ValidationError
//	}
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// The standard library errors.Is and errors.As work through every wrapper
// produced here.
package errors

package config

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// Specification versions with shipped or loadable templates
const (
	Version201400 = 201400
	Version201600 = 201600
	Version201800 = 201800
	Version201900 = 201900

	// LatestVersion is used when no version is configured
	LatestVersion = Version201900
)

// SpecificationOptions are the specification keys decoded and checked
type SpecificationOptions struct {
	Version      int    `validate:"oneof=201400 201600 201800 201900"`
	SchemaLevel  int    `validate:"gte=0,lte=6"`
	SchemaPath   string `validate:"omitempty,dir"`
	ValidateSend bool
	ValidateRecv bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var optionKeys = map[string]string{
	"Version":     KeySpecificationVersion,
	"SchemaLevel": KeySchemaLevel,
	"SchemaPath":  KeySchemaPath,
}

// SpecificationOptions decodes the specification and validation keys.
// Any malformed or out-of-range value yields ErrInvalidConfigValue naming the key.
func (c *Config) SpecificationOptions() (SpecificationOptions, error) {
	var (
		opts SpecificationOptions
		err  error
	)

	if opts.Version, err = c.IntegerValue(KeySpecificationVersion, LatestVersion); err != nil {
		return opts, err
	}
	if opts.SchemaLevel, err = c.IntegerValue(KeySchemaLevel, 0); err != nil {
		return opts, err
	}
	opts.SchemaPath = c.Value(KeySchemaPath, "")

	all, err := c.BooleanValue(KeyValidate, false)
	if err != nil {
		return opts, err
	}
	if v, err := c.BooleanValue(KeyValidateAll, false); err != nil {
		return opts, err
	} else if v {
		all = true
	}
	if opts.ValidateSend, err = c.BooleanValue(KeyValidateSend, all); err != nil {
		return opts, err
	}
	if opts.ValidateRecv, err = c.BooleanValue(KeyValidateRecv, all); err != nil {
		return opts, err
	}

	if err := validate.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s=%v fails %q", optionKeys[fe.StructField()], fe.Value(), fe.Tag()))
			}
			return opts, errors.Newf(errors.ErrInvalidConfigValue, "%s", strings.Join(msgs, "; "))
		}
		return opts, errors.Wrap(err, "Config", "SpecificationOptions", "validate options")
	}

	return opts, nil
}

// VersionDirectory returns the template directory name for a version,
// e.g. 201900 -> "2019.00".
func VersionDirectory(version int) string {
	return fmt.Sprintf("%04d.%02d", version/100, version%100)
}

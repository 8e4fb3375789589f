package main

import (
	"github.com/samber/oops"
)

// Code is the machine-readable identifier of a CLI error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeCLISetupFailure   Code = "cli.setup.failure"
	CodeCLIInputInvalid   Code = "cli.input.invalid"
	CodeCLIReadFailure    Code = "cli.io.read.failure"
	CodeCLIWriteFailure   Code = "cli.io.write.failure"
	CodeCLIComputeFailure Code = "cli.compute.failure"
	CodeCLIStoreFailure   Code = "cli.store.failure"
)

func errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// codeOf returns the code attached to err, or "".
func codeOf(err error) Code {
	o, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := o.Code().(Code); ok {
		return code
	}

	return ""
}

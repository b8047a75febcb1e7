// Package errors provides examples of structured error handling.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/ingest/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeValidation, "no data processed").
		WithDetail("rows", 0)

	fmt.Println(err.Error())

	// Output:
	// validation: no data processed
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := errors.Wrap(originalErr, errors.ErrorTypeDecode, "failed to read parquet payload").
		WithDetail("file", "events.parquet")

	if errors.IsType(err, errors.ErrorTypeDecode) {
		fmt.Println("This is a decode error")
	}

	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is a decode error
	// Original error was unexpected EOF
}

// ExampleUnsupportedFormat shows the error raised for unknown format keys.
func ExampleUnsupportedFormat() {
	err := errors.UnsupportedFormat("file type", "xml")
	fmt.Println(err)
	fmt.Println(errors.TypeOf(err))

	// Output:
	// unsupported_format: unsupported file type: "xml"
	// unsupported_format
}

// Copyright (c) 2018-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// API inspired by https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html

/*
Package errors provides error creation and matching for all vault systems.  It
is imported as errors and takes over the roll of the standard library errors
package.

Every vault error may carry the operation that raised it, the kind (class) of
the failure, and the name of the offending record field or identifier.  The
kind is what callers match on; the field is what a user interface renders.
*/
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Separator is inserted between nested errors when formatting as strings.  The
// default separator produces easily readable multiline errors.  Separator may
// be modified at init time to create error strings appropriate for logging
// errors on a single line.
var Separator = ":\n\t"

// Error describes an error condition raised within the vault.  Errors may
// optionally provide details regarding the operation, class of error, and the
// record field or identifier that caused it.
type Error struct {
	Op    Op
	Kind  Kind
	Field Field
	Err   error
}

// Op describes the operation or method in which an error condition was raised.
type Op string

// Opf returns a formatted Op.
func Opf(format string, a ...interface{}) Op {
	return Op(fmt.Sprintf(format, a...))
}

// Field names the record field, identifier, or path segment that an error
// condition refers to.
type Field string

// Kind describes the class of error.
type Kind int

// Error kinds.
const (
	Other                 Kind = iota // Unclassified error -- does not appear in error strings
	Bug                               // Error is known to be a result of our bug
	Invalid                           // Invalid operation
	IO                                // I/O error
	Exist                             // Item already exists
	NotExist                          // Item does not exist
	Crypto                            // Encryption or decryption primitive failure
	Passphrase                        // Invalid passphrase or MAC mismatch
	UnsupportedVersion                // Persisted data declares an unknown format version
	InvalidFieldValue                 // Persisted field holds a malformed value
	FieldIsEmpty                      // Required persisted field is absent
	PasswordRequired                  // Operation needs a passphrase that was not provided
	PrivateKeyUnavailable             // Private key material cannot be obtained
	PublicKeyUnavailable              // Public key material cannot be obtained
	IncorrectBlockchain               // Chain or network does not match the request
	InvalidData                       // Supplied data disagrees with derived data
	UnsupportedData                   // Data is well-formed but not supported for the request
	InvalidPath                       // Malformed or out of range HD path
	CommError                         // Hardware device communication failure
	DeviceBusy                        // Hardware device already has a request in flight
	Unavailable                       // Hardware device is not connected
	Declined                          // User rejected the request on the device
	WrongApp                          // Unexpected application is open on the device
	StorageUnavailable                // Record directory is missing or unusable
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "unclassified error"
	case Bug:
		return "internal vault error"
	case Invalid:
		return "invalid operation"
	case IO:
		return "I/O error"
	case Exist:
		return "item already exists"
	case NotExist:
		return "item does not exist"
	case Crypto:
		return "encryption/decryption error"
	case Passphrase:
		return "invalid passphrase"
	case UnsupportedVersion:
		return "unsupported version"
	case InvalidFieldValue:
		return "invalid field value"
	case FieldIsEmpty:
		return "field is empty"
	case PasswordRequired:
		return "password required"
	case PrivateKeyUnavailable:
		return "private key unavailable"
	case PublicKeyUnavailable:
		return "public key unavailable"
	case IncorrectBlockchain:
		return "incorrect blockchain"
	case InvalidData:
		return "invalid data"
	case UnsupportedData:
		return "unsupported data"
	case InvalidPath:
		return "invalid HD path"
	case CommError:
		return "device communication error"
	case DeviceBusy:
		return "device busy"
	case Unavailable:
		return "device unavailable"
	case Declined:
		return "declined on device"
	case WrongApp:
		return "wrong application open on device"
	case StorageUnavailable:
		return "storage unavailable"
	default:
		return "unknown error kind"
	}
}

// New creates a simple error from a string.  New is identical to "errors".New
// from the standard library.
func New(text string) error {
	return errors.New(text)
}

// Errorf creates a simple error from a format string and arguments.  Errorf is
// identical to "fmt".Errorf from the standard library.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// E creates an *Error from one or more arguments.
//
// Each argument type is inspected when constructing the error.  If multiple
// args of similar type are passed, the final arg is recorded.  The following
// types are recognized:
//
//	errors.Op
//	    The operation or method which was invoked.
//	errors.Kind
//	    The class of error.
//	errors.Field
//	    The record field or identifier the error refers to.
//	string
//	    Description of the error condition.  String types populate the
//	    Err field and overwrite, and are overwritten by, other arguments
//	    which implement the error interface.
//	error
//	    The underlying error.  If the error is an *Error, the Op, Kind and
//	    Field will be promoted to the newly created error if not set to
//	    another value in the args.
//
// If another *Error is passed as an argument and no other arguments differ from
// the wrapped error, instead of wrapping the error, the errors are collapsed
// and fields of the passed *Error are promoted to the returned error.
//
// Panics if no arguments are passed.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}

	var e Error
	var prev *Error

	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case Field:
			e.Field = arg
		case string:
			e.Err = New(arg)
		case *Error:
			prev = arg
			e.Err = arg
		case error:
			e.Err = arg
		}
	}

	if e.Err == prev && prev != nil {
		if e.Op == "" {
			e.Op = prev.Op
		}
		if e.Kind == 0 {
			e.Kind = prev.Kind
		}
		if e.Field == "" {
			e.Field = prev.Field
		}

		// Remove the previous error from error chain if it does not have any
		// unique fields.
		if (prev.Op == "" || e.Op == prev.Op) &&
			(prev.Kind == 0 || e.Kind == prev.Kind) &&
			(prev.Field == "" || e.Field == prev.Field) {
			e.Err = prev.Err
		}
	}

	return &e
}

func (e *Error) Error() string {
	var b strings.Builder

	// Record the last added fields to the string to avoid duplication.
	var last Error

	for {
		pad := false // whether to pad/separate next field
		if e.Op != "" && e.Op != last.Op {
			b.WriteString(string(e.Op))
			pad = true
			last.Op = e.Op
		}
		if e.Kind != 0 && e.Kind != last.Kind {
			if pad {
				b.WriteString(": ")
			}
			b.WriteString(e.Kind.String())
			pad = true
			last.Kind = e.Kind
		}
		if e.Field != "" && e.Field != last.Field {
			if pad {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "(%s)", e.Field)
			pad = true
			last.Field = e.Field
		}
		if e.Err == nil {
			break
		}
		if err, ok := e.Err.(*Error); ok {
			if pad {
				b.WriteString(Separator)
			}
			e = err
			continue
		}
		if pad {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
		break
	}

	s := b.String()
	if s == "" {
		return Other.String()
	}
	return s
}

// Unwrap returns the wrapped error, allowing interop with the standard library
// errors.Is and errors.As functions.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is returns whether err is of type *Error and has a matching kind in err or
// any nested errors.  Does not match against the Other kind.
func Is(kind Kind, err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	return Is(kind, e.Err)
}

// KindOf returns the first non-Other kind found in err or its nested errors.
func KindOf(err error) Kind {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind != Other {
			return e.Kind
		}
		err = e.Err
	}
	return Other
}

// FieldOf returns the first field recorded in err or its nested errors.
func FieldOf(err error) Field {
	var e *Error
	for errors.As(err, &e) {
		if e.Field != "" {
			return e.Field
		}
		err = e.Err
	}
	return ""
}

// Transient reports whether err describes a hardware condition that may clear
// on its own, in which case a caller may choose to retry.  User declines are
// never transient.
func Transient(err error) bool {
	switch KindOf(err) {
	case CommError, DeviceBusy, Unavailable:
		return true
	}
	return false
}

// Match compares two Errors, returning true if every non-zero field of err1 is
// equal to the same field in err2.  Nested errors in err1 are similarly
// compared to any nested error of err2.
func Match(err1, err2 error) bool {
	e1, ok := err1.(*Error)
	if !ok {
		return false
	}
	e2, ok := err2.(*Error)
	if !ok {
		return false
	}

	if e1.Op != "" && e1.Op != e2.Op {
		return false
	}
	if e1.Kind != 0 && e1.Kind != e2.Kind {
		return false
	}
	if e1.Field != "" && e1.Field != e2.Field {
		return false
	}
	if e1.Err == nil {
		return true
	}

	if e1.Err == e2.Err {
		return true
	}
	if _, ok := e1.Err.(*Error); ok {
		return Match(e1.Err, e2.Err)
	}
	return e2.Err != nil && e1.Err.Error() == e2.Err.Error()
}

// MatchAll performs Match on needle using haystack and every nested error of
// haystack.
func MatchAll(needle, haystack error) bool {
	n, ok := needle.(*Error)
	if !ok {
		return false
	}
	h, ok := haystack.(*Error)
	if !ok {
		return false
	}
	for h != nil {
		if Match(n, h) {
			return true
		}
		h, _ = h.Err.(*Error)
	}
	return false
}

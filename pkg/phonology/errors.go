package phonology

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a DataError.
type ErrorKind int

const (
	// KindMissingPhonemes: a query referenced identifiers absent from the matrix.
	KindMissingPhonemes ErrorKind = iota + 1
	// KindMalformedTable: the source table cannot be turned into a matrix.
	KindMalformedTable
	// KindTargetsOutsideAlphabet: a target phoneme is not part of the alphabet.
	KindTargetsOutsideAlphabet
	// KindUnreadableSource: the table could not be loaded at all.
	KindUnreadableSource
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingPhonemes:
		return "missing phonemes"
	case KindMalformedTable:
		return "malformed table"
	case KindTargetsOutsideAlphabet:
		return "targets outside alphabet"
	case KindUnreadableSource:
		return "unreadable source"
	}
	return "unknown"
}

// DataError is the only error kind the analysis core reports to callers.
// Identifiers lists every offending phoneme, not just the first one found.
type DataError struct {
	Kind        ErrorKind
	Identifiers []string
	Detail      string
	Err         error
}

func (e *DataError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindMissingPhonemes:
		b.WriteString("phonemes not found in dataset")
	case KindTargetsOutsideAlphabet:
		b.WriteString("target phonemes not in alphabet")
	default:
		b.WriteString(e.Kind.String())
	}
	if len(e.Identifiers) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Identifiers, ", "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DataError) Unwrap() error { return e.Err }

// AsDataError returns the DataError in err's chain, if any.
func AsDataError(err error) (*DataError, bool) {
	var de *DataError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsDataError reports whether err's chain holds a DataError.
func IsDataError(err error) bool {
	_, ok := AsDataError(err)
	return ok
}

func malformed(format string, args ...interface{}) *DataError {
	return &DataError{Kind: KindMalformedTable, Detail: fmt.Sprintf(format, args...)}
}

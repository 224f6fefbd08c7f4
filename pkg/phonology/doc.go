// Package phonology holds the phoneme × feature matrix the analyses run on.
//
// A Matrix is built once from a parsed table whose first column names the
// phoneme, an optional "type" column carries free-text metadata, and every
// other column is a tri-state feature encoded as 1, 0 or -1. Values are
// exposed as the Value enum so that Unspecified cannot be compared as if it
// were an ordinary value by accident.
package phonology

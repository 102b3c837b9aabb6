// Package errors re-exports github.com/cockroachdb/errors so every package
// wraps and inspects errors the same way.
//
//	if err := st.Save(); err != nil {
//	    return errors.Wrap(err, "persist credentials")
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New      = crdb.New
	Newf     = crdb.Newf
	Wrap     = crdb.Wrap
	Wrapf    = crdb.Wrapf
	WithHint = crdb.WithHint
)

var (
	Is           = crdb.Is
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	FlattenHints = crdb.FlattenHints
)

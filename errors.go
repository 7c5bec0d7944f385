package reconciler

import "errors"

// Script set errors, raised before any database access.
var (
	// ErrFileNameMalformed indicates a script file name has no leading
	// run of decimal digits to parse a sequence number from.
	ErrFileNameMalformed = errors.New("script file name has no numeric prefix")

	// ErrFileNumbering indicates the script set is not numbered
	// contiguously starting at 1.
	ErrFileNumbering = errors.New("script numbering is not contiguous from 1")

	// ErrCannotLoadFile indicates a script could not be read from its
	// collection.
	ErrCannotLoadFile = errors.New("cannot load script file")
)

// Schema introspection errors. ErrSchemaIntrospection is the parent kind;
// every introspection failure also matches exactly one of the sub-kinds
// below, so callers can distinguish where the metadata shape broke.
var (
	// ErrSchemaIntrospection indicates the schema metadata query returned
	// a document with an unexpected shape.
	ErrSchemaIntrospection = errors.New("unexpected schema metadata shape")

	// ErrInfoNoData indicates the metadata query returned no rows.
	ErrInfoNoData = errors.New("schema info query returned no data")

	// ErrInfoNotAnObject indicates the metadata document is not a JSON object.
	ErrInfoNotAnObject = errors.New("schema info is not an object")

	// ErrInfoMissingKey indicates the metadata document lacks a required key.
	ErrInfoMissingKey = errors.New("schema info key not found")

	// ErrInfoWrongType indicates a metadata key holds a value of the
	// wrong type.
	ErrInfoWrongType = errors.New("schema info key has wrong type")
)

// Ledger drift errors, raised during plan construction.
var (
	// ErrFileNoLongerExists indicates the ledger records a migration whose
	// script is absent from the current set.
	ErrFileNoLongerExists = errors.New("applied migration no longer exists in script set")

	// ErrFileMismatch indicates the ledger's file name for a sequence
	// number disagrees with the current script at that number.
	ErrFileMismatch = errors.New("applied migration file name mismatch")
)

// ErrScriptInvalid indicates a script body failed the SQL preflight: it
// does not parse, or it contains a statement that cannot run inside a
// transaction block and would abort the atomic unit.
var ErrScriptInvalid = errors.New("script failed SQL preflight")

// ErrDatabase indicates the underlying query or transaction mechanism
// failed. The native driver error is wrapped and available via errors.As.
var ErrDatabase = errors.New("database operation failed")

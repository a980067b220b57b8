// Package persist stores the signing engine's domain records in a shared
// state.Handle.
//
// Each record kind lives in its own namespace and is accessed through a typed
// Table, so a key's value always decodes to one Go type. Records are encoded
// as JSON; a value that no longer decodes is reported as a state decode error
// rather than silently dropped.
package persist

// Package filter decides which events get printed.
//
// Two command-line mini-languages feed it:
//   - a comma-separated list of event names (-e), matched with OR semantics
//   - a comma-separated list of key=value pairs (-a), matched with AND semantics
//
// Attribute values are compared by their canonical text form (lwes.FormatValue),
// so "-a port=80" matches a UInt16, an Int32 or a String holding "80" alike.
//
// A malformed pair list is reported as a *ParseError. Callers must not run with
// a partially parsed list.
package filter

// Package output renders events that passed the filter.
//
// Render produces the line format consumed by downstream tooling:
//
//	<name>[<count>] {<k1> = <v1>;<k2> = <v2>;}
//
// Sinks receive each passing event:
//   - TextSink writes each rendered line with one unbuffered write
//   - SpanSink records one OpenTelemetry span per event
//   - MultiSink fans an event out to several sinks
//
// Sinks are driven by a single goroutine and are not safe for concurrent use.
package output

// Package export implements the static-site export pipeline: fetching
// rendered pages, inlining their resources, and accumulating the results
// into a downloadable archive across many short-lived invocations.
package export

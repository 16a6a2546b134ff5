// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing search results, procedure texts and
// sessions. These helpers are intentionally minimal and are not intended for
// production usage.
package testutil

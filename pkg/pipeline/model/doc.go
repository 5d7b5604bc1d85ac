// Package model holds the data structures shared by the pipeline engine and
// its plugins: step metadata, the result type threaded through
// continuations, timing entries, event names and the plugin contract.
package model

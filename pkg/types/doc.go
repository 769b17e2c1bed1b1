// Package types defines the bridge configuration, its validation, and the
// sentinel errors shared between the dispatcher and the data sources.
package types

// Package transport sends groups of documents to a remote endpoint and
// classifies the errors that come back so the retrier package knows which
// ones are worth retrying.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package transport

// Version is the current version of the transport module.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version that is compatible with this version.
const MinCompatibleVersion = "1.0.0"

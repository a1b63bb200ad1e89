// Package clock abstracts the passage of time so that components scheduling
// delayed or periodic work can be driven by a fake clock in tests instead of
// waiting on the real wall clock.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package clock

// Version is the current version of the clock module.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version that is compatible with this version.
const MinCompatibleVersion = "1.0.0"

// Package domain contains the core domain entities and value objects for the
// dispatch core: documents awaiting replication and the error sentinels
// returned by the replicator's public API.
//
// This package represents the innermost layer of the module. It has no
// dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Document]: a single unit of content queued for push replication
//   - [PushResult]: the outcome of delivering a group of documents
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain

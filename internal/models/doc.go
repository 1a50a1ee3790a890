// Package models defines domain entities and persistence interfaces for the xsx account clone tool.
//
// The package contains three categories of types:
//
// 1. Transient records: values that live for one item or one run
//   - [SourceEntity] : raw record fetched from the source account
//   - [TransformedEntity] : creation-ready payload with its [Dependencies] lifted out
//   - [IdentifierMap] : source to destination ids for one run
//   - [CloneResult] and [CloneSummary] : per-entity outcomes and their ordered aggregate
//
// 2. Wire values shared by the client and the engine
//   - [InventoryLine], [Retailer]
//
// 3. Persistent Entities: Database-backed models
//   - [CloneRun] : history of clone and seed runs with status and counts
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models

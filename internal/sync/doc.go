// Package sync converges a local SQLite table to the tasks of a remote
// project.
//
// A Synchronizer owns one project id, one table and an ordered set of field
// descriptors. It derives the table schema from the direct fields, fetches
// the project's tasks once through a Source, and reconciles the table:
//
//	local  = identity values stored in the table
//	remote = identity values of the fetched tasks
//	stale  = local - remote
//
//	upsert every remote task (then apply side-effect fields to it)
//	delete every stale row
//
// Every upsert is issued before any delete. Every remote task is rewritten
// on every pass; there is no change detection. Running Synchronize twice
// against an unchanged remote leaves the table as the first run left it.
//
// Statements are not grouped in a transaction. A pass that fails part way
// leaves whatever the completed statements wrote; running it again is the
// recovery path.
package sync

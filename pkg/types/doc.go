// Package types defines the records, field descriptor interfaces, query
// predicates, configuration and standard errors shared by the asana2sql
// packages.
package types

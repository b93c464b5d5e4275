//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for asana2sql using Mage.
//
// Usage:
//
//	mage build       Compile the asana2sql binary to bin/
//	mage install     Install asana2sql to GOPATH/bin
//	mage clean       Remove build artifacts
//	mage test:all    Run every package's tests
//	mage test:race   Run every package's tests with the race detector
//	mage test:cover  Write a coverage profile to bin/coverage.out
//	mage test:smoke  Build, then run the binary's version command
//	mage lint        Run golangci-lint
//	mage stats       Print Go line counts
package main

//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import "github.com/magefile/mage/sh"

const binLint = "golangci-lint"

// Lint runs golangci-lint, then go vet.
func Lint() error {
	if err := sh.RunV(binLint, "run", "--timeout", "5m", "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "vet", "./...")
}

//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// envPostgresDSN points the store tests at a live postgres database.
const envPostgresDSN = "HIVE_TEST_POSTGRES_DSN"

// Test groups test targets.
type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs tests in short mode.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Postgres runs the store tests against the database named by
// HIVE_TEST_POSTGRES_DSN.
func (Test) Postgres() error {
	if os.Getenv(envPostgresDSN) == "" {
		fmt.Printf("%s is not set, skipping.\n", envPostgresDSN)
		return nil
	}
	return sh.RunV(binGo, "test", "-v", "-run", "Postgres", "./internal/store/...")
}

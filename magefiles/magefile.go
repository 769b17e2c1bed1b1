//go:build mage

// Package main provides build targets for hive using Mage.
//
// Usage:
//
//	mage build          Compile the hive binary to bin/
//	mage test:all       Run all tests
//	mage test:unit      Run tests with -short
//	mage test:postgres  Run store tests against $HIVE_TEST_POSTGRES_DSN
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install hive to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "hive"
	binaryDir  = "bin"
	cmdDir     = "./cmd/hive"
)

// Build compiles the hive binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Package testsupport holds helpers shared by package tests: temp-dir
// configs, an opened store, and small file fixtures.
package testsupport

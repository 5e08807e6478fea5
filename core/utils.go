package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanString trims all leading and trailing whitespace in `s`, normalizes it to NFC and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests,
// so the root is searched upwards from the current directory.
// The WORKDIR env var wins when set (deployed binaries have no go.mod around).
func Getwd() string {
	if wd := os.Getenv("WORKDIR"); wd != "" {
		return wd
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

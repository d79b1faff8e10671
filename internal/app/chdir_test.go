package app

import (
	"os"
	"testing"
)

// chdir changes the working directory for the duration of the test. It
// stands in for testing.T.Chdir, which needs a Go 1.24 toolchain.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Error(err)
		}
	})
}

package cmd

import (
	"testing"
)

func TestVersion(t *testing.T) {
	cmd, out := newTestCommand()
	versionCmd.Run(cmd, nil)
	if out.String() != "collector dev\n" {
		t.Errorf("unexpected version output %q", out.String())
	}
}

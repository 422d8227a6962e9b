package main

import (
	"os"

	"github.com/go-delve/elfscope/cmd/elfscope/cmds"
	"github.com/go-delve/elfscope/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.ElfscopeVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}

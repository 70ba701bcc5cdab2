/*
pspredump - Generate pre-filled redump.org submission reports from PSP ISO images.

Copyright © 2025 Hans Bonini
*/
package main

import (
	"github.com/hansbonini/pspredump/cmd"
)

// Version information (injected at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime, GitCommit)
	cmd.Execute()
}

package main

import (
	"github.com/JonMunkholm/afterflow/internal/cli"
)

// Version information (injected by ldflags)
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	cli.SetVersion(Version, Commit, Date)
	cli.Execute()
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "underthreat"}

	root.AddCommand(serveCMD(), queryCMD(), ingestCMD(), migrateCMD(), versionCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

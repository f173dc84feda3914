// Command sentinel is the CLI surface for operating a running server:
// status, watch, heal, version. Exit code 0 on success, 1 on error.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information, set by build flags.
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	serverURL string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sentinel",
	Short:   "Operate a self-healing bitemporal knowledge graph",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "sentinel-server base URL")

	rootCmd.SetVersionTemplate(`sentinel {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(healCmd)
}

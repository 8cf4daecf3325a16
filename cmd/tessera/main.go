// Package main provides the tessera CLI for running schema migrations
// and inspecting database connectivity.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Database drivers selectable through the configuration file.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Tessera manages database schemas and migrations",
	Long: `Tessera is an ORM toolkit. The CLI applies versioned schema
migrations from YAML files, rolls them back, renders their SQL, and
reports migration and connection status.

Configuration is read from tessera.yaml in the working directory (or
the file given by --config) and from TESSERA_* environment variables.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tessera v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./tessera.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dbCmd)
}

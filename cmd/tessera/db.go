// Database subcommands: ping, stats, inspect.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var inspectOut string

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect database connectivity",
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the database is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := openPool(v)
		if err != nil {
			return err
		}
		defer p.Close()

		conn, err := p.Acquire(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Release()
		if err := conn.PingContext(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", p.Dialect().Name())
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print pool gauges and counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := openPool(v)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.CheckHealth(cmd.Context()); err != nil {
			return err
		}

		st := p.Status()
		s := p.Stats()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "dialect\t%s\n", p.Dialect().Name())
		fmt.Fprintf(w, "active\t%d\n", st.Active)
		fmt.Fprintf(w, "idle\t%d\n", st.Idle)
		fmt.Fprintf(w, "waiting\t%d\n", st.Waiting)
		fmt.Fprintf(w, "dials\t%d\n", s.Dials)
		fmt.Fprintf(w, "dial failures\t%d\n", s.DialFailures)
		fmt.Fprintf(w, "idle hits\t%d\n", s.Hits)
		fmt.Fprintf(w, "discards\t%d\n", s.Discards)
		fmt.Fprintf(w, "reaped\t%d\n", s.Reaped)
		fmt.Fprintf(w, "health failures\t%d\n", s.HealthFailures)
		fmt.Fprintf(w, "exhausted\t%d\n", s.Exhausted)
		return w.Flush()
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Read the live database schema",
	Long: `Inspect reads the connected database's tables, columns, indexes,
and constraints back into a schema snapshot, skipping the migration
bookkeeping tables. With --out the snapshot is written in the msgpack
encoding that "migrate diff --schema" consumes; otherwise a summary is
printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig()
		if err != nil {
			return err
		}
		e, p, err := newEngine(v)
		if err != nil {
			return err
		}
		defer p.Close()

		snap, err := e.Inspect(cmd.Context())
		if err != nil {
			return err
		}
		if inspectOut != "" {
			data, err := snap.Encode()
			if err != nil {
				return err
			}
			if err := os.WriteFile(inspectOut, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d tables)\n", inspectOut, len(snap.Tables))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TABLE\tCOLUMNS\tPRIMARY KEY")
		for _, t := range snap.Tables {
			fmt.Fprintf(w, "%s\t%d\t%s\n", t.Name, len(t.Columns), strings.Join(t.PrimaryKey, ", "))
		}
		return w.Flush()
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectOut, "out", "", "write the msgpack snapshot to this file")

	dbCmd.AddCommand(pingCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(inspectCmd)
}

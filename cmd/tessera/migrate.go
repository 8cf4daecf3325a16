// Migration subcommands: apply, rollback, status, sql, new.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tessera-orm/tessera/migrate"
	"github.com/tessera-orm/tessera/schema"
)

var (
	applyTarget      string
	rollbackSteps    int
	sqlReverse       bool
	newNamespace     string
	statusNamespaces bool
	diffNamespace    string
	diffSchemaFile   string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Apply runs every pending migration in dependency order, each in
its own transaction. With --target it stops after the named migration.`,
	RunE: runApply,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the most recent migrations",
	Long: `Rollback undoes the newest applied migrations. If any selected
migration contains an irreversible operation the whole batch is refused
before anything executes.`,
	RunE: runRollback,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runStatus,
}

var sqlCmd = &cobra.Command{
	Use:   "sql <migration-id>",
	Short: "Print the SQL a migration would execute",
	Args:  cobra.ExactArgs(1),
	RunE:  runSQL,
}

var diffCmd = &cobra.Command{
	Use:   "diff <description>",
	Short: "Plan a migration from a target schema snapshot",
	Long: `Diff compares the schema described by the existing migration files
against a target snapshot (the msgpack encoding of schema.Snapshot) and
writes a migration file covering the difference. Renames are never
guessed: a dropped and an added table or column of the same shape are
reported as candidates so the planned file can be edited to use rename
operations instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

var newCmd = &cobra.Command{
	Use:   "new <description>",
	Short: "Create an empty migration file",
	Long: `New writes a timestamped migration file with no operations into
the migrations directory. Edit it to add operations or raw SQL.`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

func init() {
	applyCmd.Flags().StringVar(&applyTarget, "target", "", "stop after this migration ID")
	rollbackCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "number of migrations to undo")
	sqlCmd.Flags().BoolVar(&sqlReverse, "reverse", false, "print the rollback SQL instead")
	newCmd.Flags().StringVar(&newNamespace, "namespace", migrate.DefaultNamespace, "migration namespace")
	statusCmd.Flags().BoolVar(&statusNamespaces, "namespaces", false, "include the namespace column")
	diffCmd.Flags().StringVar(&diffNamespace, "namespace", migrate.DefaultNamespace, "migration namespace")
	diffCmd.Flags().StringVar(&diffSchemaFile, "schema", "", "target schema snapshot file (required)")
	_ = diffCmd.MarkFlagRequired("schema")

	migrateCmd.AddCommand(applyCmd)
	migrateCmd.AddCommand(rollbackCmd)
	migrateCmd.AddCommand(statusCmd)
	migrateCmd.AddCommand(sqlCmd)
	migrateCmd.AddCommand(diffCmd)
	migrateCmd.AddCommand(newCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	e, p, err := newEngine(v)
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := e.Apply(cmd.Context(), applyTarget)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("nothing to apply")
		return nil
	}
	fmt.Printf("applied %d migration(s)\n", n)
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	e, p, err := newEngine(v)
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := e.Rollback(cmd.Context(), rollbackSteps)
	if err != nil {
		return err
	}
	fmt.Printf("rolled back %d migration(s)\n", n)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	e, p, err := newEngine(v)
	if err != nil {
		return err
	}
	defer p.Close()

	statuses, err := e.Status(cmd.Context())
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Println("no migrations found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if statusNamespaces {
		fmt.Fprintln(w, "ID\tNAMESPACE\tSTATE\tAPPLIED AT\tDESCRIPTION")
	} else {
		fmt.Fprintln(w, "ID\tSTATE\tAPPLIED AT\tDESCRIPTION")
	}
	for _, st := range statuses {
		state := "pending"
		if st.Applied {
			state = "applied"
		}
		if statusNamespaces {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				st.ID, st.Namespace, state, formatAppliedAt(st.AppliedAt), st.Description)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				st.ID, state, formatAppliedAt(st.AppliedAt), st.Description)
		}
	}
	return w.Flush()
}

func runSQL(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	e, p, err := newEngine(v)
	if err != nil {
		return err
	}
	defer p.Close()

	dir := migrate.Forward
	if sqlReverse {
		dir = migrate.Reverse
	}
	stmts, err := e.RenderSQL(args[0], dir)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		fmt.Println(stmt + ";")
	}
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(diffSchemaFile)
	if err != nil {
		return err
	}
	target, err := schema.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return err
	}

	src := migrate.NewSource(v.GetString(cfgMigrationsDir))
	existing, err := src.Load()
	if err != nil {
		return err
	}
	current, err := migrate.Replay(nil, existing...)
	if err != nil {
		return err
	}

	ops := migrate.Diff(current, target)
	if len(ops) == 0 {
		fmt.Println("schema is up to date")
		return nil
	}
	m := migrate.NewMigration(diffNamespace, args[0], ops...)
	if len(existing) > 0 {
		m.Dependencies = []string{existing[len(existing)-1].ID}
	}
	path, err := src.Save(m)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%d operations)\n", path, len(ops))

	for _, c := range migrate.RenameCandidates(current, target) {
		if c.Table == "" {
			fmt.Printf("hint: table %q and %q have the same shape; edit the file to use rename_table if this is a rename\n", c.From, c.To)
		} else {
			fmt.Printf("hint: %s.%s and %s.%s have the same shape; edit the file to use rename_column if this is a rename\n", c.Table, c.From, c.Table, c.To)
		}
	}
	return nil
}

func runNew(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	src := migrate.NewSource(v.GetString(cfgMigrationsDir))
	m := migrate.NewMigration(newNamespace, args[0])

	// A new migration depends on the latest existing one so apply
	// order stays deterministic.
	existing, err := src.Load()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		m.Dependencies = []string{existing[len(existing)-1].ID}
	}

	path, err := src.Save(m)
	if err != nil {
		return err
	}
	fmt.Printf("created %s\n", path)
	return nil
}

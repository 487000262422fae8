// Command semantic is a CLI front end for the compiler package: it
// loads the built-in demo cube set, accepts a SemanticQuery as JSON
// (file or stdin) and validates, dry-run-compiles, or executes it
// against a live Postgres/MySQL/SQLite database. Grounded on the
// teacher's cmd/datalog CLI (flag-parsed subcommands driving a single
// engine) but rebuilt on spf13/cobra per the rest of the pack's CLI
// idiom (see _examples/accented-ai-pgtofu/internal/cli).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cubegraph/semantic/compiler"
	"github.com/cubegraph/semantic/executor"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

type globalFlags struct {
	engine string
	dsn    string
	schema string
	orgID  int
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "semantic",
		Short: "Query the semantic-layer compiler's demo cube set",
		Long: `semantic compiles Cube.js-compatible SemanticQuery JSON against a
registered set of cubes (Employees, Departments, Productivity) and either
prints the resulting SQL, validates the query, lists cube metadata, or
executes it against a live database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.engine, "engine", "postgres", "SQL dialect: postgres, mysql, or sqlite")
	root.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "database connection string (required for query)")
	root.PersistentFlags().StringVar(&flags.schema, "schema", "public", "schema name threaded into cube base queries")
	root.PersistentFlags().IntVar(&flags.orgID, "org-id", 1, "organisationId bound into every cube's security context")

	root.AddCommand(
		newMetadataCommand(flags),
		newValidateCommand(flags),
		newSQLCommand(flags),
		newQueryCommand(flags),
	)
	return root
}

func newCompiler(flags *globalFlags, db executor.DatabaseExecutor) (*compiler.Compiler, error) {
	c, err := compiler.New(compiler.Config{Executor: db, Engine: flags.engine, Schema: flags.schema})
	if err != nil {
		return nil, err
	}
	for _, cube := range demoRegistry() {
		c.RegisterCube(cube)
	}
	return c, nil
}

func openExecutor(flags *globalFlags) (executor.DatabaseExecutor, error) {
	switch flags.engine {
	case "postgres":
		return executor.NewPostgres(executor.PostgresConfig{DSN: flags.dsn})
	case "mysql":
		return executor.NewMySQL(executor.MySQLConfig{DSN: flags.dsn})
	case "sqlite":
		return executor.NewSQLite(executor.SQLiteConfig{Path: flags.dsn})
	default:
		return nil, fmt.Errorf("unknown engine %q", flags.engine)
	}
}

func readQuery(args []string) (*query.SemanticQuery, error) {
	var r io.Reader = os.Stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open query file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var q query.SemanticQuery
	if err := json.NewDecoder(r).Decode(&q); err != nil {
		return nil, fmt.Errorf("decode query JSON: %w", err)
	}
	return &q, nil
}

func newMetadataCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "List every registered cube's measures and dimensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCompiler(flags, nil)
			if err != nil {
				return err
			}
			for _, md := range c.Metadata() {
				fmt.Printf("%s %s\n", color.CyanString(md.Name), md.Description)
				for _, m := range md.Measures {
					fmt.Printf("  measure   %-30s %s\n", m.Name, m.Type)
				}
				for _, d := range md.Dimensions {
					fmt.Printf("  dimension %-30s %s\n", d.Name, d.Type)
				}
			}
			return nil
		},
	}
}

func newValidateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [query.json]",
		Short: "Validate a SemanticQuery against the demo cube set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readQuery(args)
			if err != nil {
				return err
			}
			c, err := newCompiler(flags, nil)
			if err != nil {
				return err
			}
			result := c.ValidateQuery(q)
			if result.Valid {
				fmt.Println(color.GreenString("valid"))
				return nil
			}
			fmt.Println(color.RedString("invalid:"))
			for _, e := range result.Errors {
				fmt.Printf("  - %s\n", e)
			}
			return fmt.Errorf("query failed validation")
		},
	}
}

func newSQLCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sql [query.json]",
		Short: "Compile a SemanticQuery to parameterized SQL without executing it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readQuery(args)
			if err != nil {
				return err
			}
			c, err := newCompiler(flags, nil)
			if err != nil {
				return err
			}
			secCtx := model.SecurityContext{"organisationId": flags.orgID}
			stmt, err := c.SQL(q, secCtx)
			if err != nil {
				return err
			}
			fmt.Println(stmt.SQL)
			fmt.Println(color.YellowString("params: %v", stmt.Params))
			return nil
		},
	}
}

func newQueryCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "query [query.json]",
		Short: "Execute a SemanticQuery against a live database and print the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.dsn == "" {
				return fmt.Errorf("--dsn is required for query")
			}
			q, err := readQuery(args)
			if err != nil {
				return err
			}
			db, err := openExecutor(flags)
			if err != nil {
				return err
			}
			c, err := newCompiler(flags, db)
			if err != nil {
				return err
			}
			secCtx := model.SecurityContext{"organisationId": flags.orgID}

			res, err := c.Execute(context.Background(), q, secCtx)
			if err != nil {
				return err
			}
			cols := columnsFromQuery(q.Measures, q.Dimensions, timeDimensionNames(q.TimeDimensions))
			fmt.Print(formatRows(cols, res.Data))
			return nil
		},
	}
}

func timeDimensionNames(tds []query.TimeDimension) []string {
	names := make([]string, len(tds))
	for i, td := range tds {
		names[i] = td.Dimension
	}
	return names
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"spicywod/internal/database"
	"spicywod/internal/kvstore"

	"github.com/spf13/cobra"
)

var movementsFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := kvstore.NewSQLiteStore(db).Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date\n", cfg.DatabasePath)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the movement catalog",
	Long: `Inserts every catalog movement whose name is not taken yet. Without
--file the built-in catalog is used, or movements_file from the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := movementsFile
		if path == "" {
			path = cfg.MovementsFile
		}
		catalog, err := database.LoadMovementCatalog(path)
		if err != nil {
			return err
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		added, err := database.SeedMovements(db, catalog)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %d of %d movements\n", added, len(catalog))
		return nil
	},
}

var registrationCmd = &cobra.Command{
	Use:       "registration [enable|disable|status]",
	Short:     "Open or close signups",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"enable", "disable", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		switch args[0] {
		case "enable", "disable":
			if err := database.SetRegistrationEnabled(db, args[0] == "enable"); err != nil {
				return err
			}
		}

		enabled, err := database.IsRegistrationEnabled(db)
		if err != nil {
			return err
		}
		state := "closed"
		if enabled {
			state = "open"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registration is %s\n", state)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print site totals and per-athlete activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := database.GetAdminStats(db)
		if err != nil {
			return err
		}
		users, err := database.GetAllUsersWithStats(db)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Athletes: %d (%d active in the last 30 days)\n", stats.TotalUsers, stats.ActiveAthletes)
		fmt.Fprintf(out, "Workouts: %d\nResults:  %d\n\n", stats.TotalWorkouts, stats.TotalResults)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tJOINED\tRESULTS\tLAST RESULT")
		for _, u := range users {
			last := "-"
			if u.LastResult.Valid {
				last = u.LastResult.Time.Format(time.DateOnly)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", u.Email, u.JoinedAt.Format(time.DateOnly), u.ResultCount, last)
		}
		return w.Flush()
	},
}

func init() {
	seedCmd.Flags().StringVarP(&movementsFile, "file", "f", "", "YAML movement catalog to load")

	rootCmd.AddCommand(migrateCmd, seedCmd, registrationCmd, statsCmd)
}

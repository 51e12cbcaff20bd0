package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgodjo/imdbdb/catalog"
)

func newRunQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-query <titleLo> <titleHi>",
		Short: "Execute the canonical Movies/WorkedOn/People join and emit CSV to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleLo, titleHi := args[0], args[1]

			db, err := catalog.Open(openConfig(), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			if err := tryOpenTitleIndex(db); err != nil {
				log.WithError(err).Warn("title index unavailable; falling back to a full Movies scan")
			}

			plan := db.CanonicalQuery(titleLo, titleHi, bufferSize)
			if err := plan.Open(); err != nil {
				return fmt.Errorf("opening query plan: %w", err)
			}
			defer plan.Close()

			w := csv.NewWriter(os.Stdout)
			defer w.Flush()
			if err := w.Write([]string{"title", "name"}); err != nil {
				return err
			}
			for {
				t, ok, err := plan.Next()
				if err != nil {
					return fmt.Errorf("executing query: %w", err)
				}
				if !ok {
					break
				}
				title, _ := t.Get("title")
				name, _ := t.Get("name")
				if err := w.Write([]string{title, name}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}

// tryOpenTitleIndex opens a pre-existing title index file, if present,
// so run-query can use IndexScan instead of a full Movies scan (spec
// §4.5). A missing index is not an error: the orchestrator falls back
// to Scan+Selection.
func tryOpenTitleIndex(db *catalog.Database) error {
	return db.OpenTitleIndexIfPresent()
}

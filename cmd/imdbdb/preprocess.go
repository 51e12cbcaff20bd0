package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgodjo/imdbdb/catalog"
	"github.com/jgodjo/imdbdb/ingest"
)

func newPreProcessCommand() *cobra.Command {
	var moviesPath, workedOnPath, peoplePath string

	cmd := &cobra.Command{
		Use:   "pre-process",
		Short: "Populate Movies, WorkedOn and People from TSV input and build the title index",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := catalog.Open(openConfig(), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			src := ingest.Sources{Movies: moviesPath, WorkedOn: workedOnPath, People: peoplePath}
			if err := ingest.Run(db, src); err != nil {
				_ = db.Close()
				return fmt.Errorf("pre-processing: %w", err)
			}
			return db.Close()
		},
	}
	cmd.Flags().StringVar(&moviesPath, "movies", "title.basics.tsv", "path to the movies TSV source")
	cmd.Flags().StringVar(&workedOnPath, "worked-on", "title.principals.tsv", "path to the worked-on TSV source")
	cmd.Flags().StringVar(&peoplePath, "people", "name.basics.tsv", "path to the people TSV source")
	return cmd
}

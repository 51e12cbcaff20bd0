// Command imdbdb drives the storage engine from the command line (spec
// §6): pre-process populates the three tables from TSV input and builds
// the title index; run-query executes the canonical plan and writes CSV
// to stdout.
//
// Adapted from the teacher's src/main.go (flag.String + a single
// long-running Run loop) to cobra/pflag subcommands, matching how a
// two-verb CLI surface is conventionally built in this ecosystem.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jgodjo/imdbdb/config"
)

var (
	dbPath     string
	bufferSize int
	log        = logrus.New()
)

func main() {
	root := &cobra.Command{
		Use:   "imdbdb",
		Short: "A small educational IMDB-style storage and query engine",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "./db", "database directory")
	root.PersistentFlags().IntVar(&bufferSize, "buffer-size", 64, "buffer pool size, in pages")

	root.AddCommand(newPreProcessCommand())
	root.AddCommand(newRunQueryCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openConfig() *config.DBConfig {
	return config.NewDBConfigWithBufferSize(dbPath, bufferSize)
}

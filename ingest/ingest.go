// Package ingest is an external collaborator (spec §1 "out of scope"):
// it reads the tab-separated IMDB source files and populates the three
// fixed tables, then drives the title index's bulk-load build. It talks
// to the core exclusively through catalog.Database's row-level API —
// spec §1: "Their only interaction with the core is through the
// page-level APIs of §4.1–§4.2 and the operator APIs of §4.4."
package ingest

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/jgodjo/imdbdb/catalog"
	"github.com/jgodjo/imdbdb/record"
)

// Sources names the three TSV input files.
type Sources struct {
	Movies   string
	WorkedOn string
	People   string
}

// Run populates db's three tables from src, then bulk-builds the title
// index. Movies rows are sorted by title before insertion so that the
// file itself satisfies the non-decreasing-key precondition of
// catalog.Database.BuildTitleIndex's bulk load.
func Run(db *catalog.Database, src Sources) error {
	movies, err := readTSV(src.Movies, 2)
	if err != nil {
		return err
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i][1] < movies[j][1] })
	for _, row := range movies {
		if _, err := db.AppendRow(record.Movies, row); err != nil {
			return err
		}
	}

	workedOn, err := readTSV(src.WorkedOn, 3)
	if err != nil {
		return err
	}
	for _, row := range workedOn {
		if _, err := db.AppendRow(record.WorkedOn, row); err != nil {
			return err
		}
	}

	people, err := readTSV(src.People, 2)
	if err != nil {
		return err
	}
	for _, row := range people {
		if _, err := db.AppendRow(record.People, row); err != nil {
			return err
		}
	}

	if err := db.Flush(); err != nil {
		return err
	}
	return db.BuildTitleIndex()
}

// readTSV reads a tab-separated file, skipping a header line, and
// returns each data line split into exactly width fields (short lines
// are padded with empty fields, long lines are truncated).
func readTSV(path string, width int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		row := make([]string, width)
		for i := 0; i < width && i < len(fields); i++ {
			row[i] = fields[i]
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Package catalog wires the storage engine's components into a runnable
// database: it opens the buffer pool and the three table files, manages
// the optional title B+-tree index, and assembles/drives the fixed
// canonical query plan of spec §4.5.
//
// The component-wiring and open/close lifecycle shape is adapted from
// the teacher's db.DBManager (construct from cfg+disk+buffer, hold a
// table registry, expose Insert/Scan entry points). Its generic CRUD
// surface (AddTable/RemoveTable/DeleteWhere/UpdateWhere, CSV append, JSON
// save/load of arbitrary schemas) does not survive: this engine has
// three fixed schemas and never deletes or updates a row (spec §1
// Non-goals), so Database exposes AppendRow/Flush/title-index
// helpers and the canonical-query assembly in place of the teacher's
// generic relation registry.
package catalog

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jgodjo/imdbdb/btree"
	"github.com/jgodjo/imdbdb/buffer"
	"github.com/jgodjo/imdbdb/config"
	"github.com/jgodjo/imdbdb/diskio"
	"github.com/jgodjo/imdbdb/engine"
	"github.com/jgodjo/imdbdb/record"
	"github.com/jgodjo/imdbdb/rid"
)

// TitleIndexOrder is the B+-tree order parameter M used for the title
// index (spec §4.3: "typical value 200").
const TitleIndexOrder = 200

// tableFiles maps each fixed table to its known file name (spec §6).
var tableFiles = map[record.Table]string{
	record.Movies:   config.MoviesFile,
	record.WorkedOn: config.WorkedOnFile,
	record.People:   config.PeopleFile,
}

// Database wires the buffer pool, table files and optional title index
// into one handle that the command surface drives.
type Database struct {
	cfg *config.DBConfig
	dio *diskio.Manager
	bm  *buffer.Manager
	log *logrus.Logger

	titleIndex *btree.Tree

	pageId map[record.Table]int // next append target per table
	page   map[record.Table]*record.Page
}

// Open wires a Database over cfg's DBPath and buffer pool size. It does
// not require the title index to already exist — BuildTitleIndex creates
// it lazily (spec §7 FileMissing: "tree files trigger lazy re-creation
// on the index path").
func Open(cfg *config.DBConfig, log *logrus.Logger) (*Database, error) {
	if log == nil {
		log = logrus.New()
	}
	dio := diskio.NewManager(cfg.DBPath)
	bm := buffer.NewManager(dio, cfg.BMBufferCount, log)
	return &Database{
		cfg: cfg, dio: dio, bm: bm, log: log,
		pageId: make(map[record.Table]int),
		page:   make(map[record.Table]*record.Page),
	}, nil
}

// Buffer exposes the shared buffer pool to callers assembling custom
// operator pipelines.
func (d *Database) Buffer() *buffer.Manager { return d.bm }

// Disk exposes the shared disk manager, e.g. for materialising
// projections' Truncate calls.
func (d *Database) Disk() *diskio.Manager { return d.dio }

// AppendRow appends row to table's file, allocating a new page when the
// current tail page is full (spec §4.1 FULL recovery). It returns the
// RID the row was assigned.
func (d *Database) AppendRow(table record.Table, values []string) (rid.RID, error) {
	file := tableFiles[table]
	page, pageId, err := d.tailPage(table, file)
	if err != nil {
		return rid.RID{}, err
	}
	row := record.Row{Table: table, Values: values}
	slot, ok := page.InsertRow(row)
	if !ok {
		if err := d.flushTail(table, file); err != nil {
			return rid.RID{}, err
		}
		page, pageId, err = d.newTailPage(table, file)
		if err != nil {
			return rid.RID{}, err
		}
		slot, ok = page.InsertRow(row)
		if !ok {
			return rid.RID{}, fmt.Errorf("catalog: row for table %s does not fit in a fresh page", table)
		}
	}
	d.bm.MarkDirty(file, pageId)
	return rid.RID{PageId: pageId, SlotId: slot}, nil
}

func (d *Database) tailPage(table record.Table, file string) (*record.Page, int, error) {
	if p, ok := d.page[table]; ok {
		return p, d.pageId[table], nil
	}
	n, err := d.dio.HighWaterPageCount(file)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return d.newTailPage(table, file)
	}
	pageId := n - 1
	fr, err := d.bm.GetPage(file, pageId)
	if err != nil {
		return nil, 0, err
	}
	if fr == nil {
		return nil, 0, errors.New("catalog: buffer pool exhausted while opening tail page")
	}
	p, err := record.LoadFromBytes(table, pageId, fr.Data)
	d.bm.UnpinPage(file, pageId)
	if err != nil {
		return nil, 0, err
	}
	d.page[table] = p
	d.pageId[table] = pageId
	return p, pageId, nil
}

func (d *Database) newTailPage(table record.Table, file string) (*record.Page, int, error) {
	fr, err := d.bm.CreatePage(file)
	if err != nil {
		return nil, 0, err
	}
	if fr == nil {
		return nil, 0, buffer.ErrNoVictim
	}
	d.bm.UnpinPage(file, fr.PageId)
	p := record.NewPage(table, fr.PageId)
	d.page[table] = p
	d.pageId[table] = fr.PageId
	return p, fr.PageId, nil
}

// flushTail writes the in-memory tail page for table back through the
// buffer pool before it is replaced by a fresh page.
func (d *Database) flushTail(table record.Table, file string) error {
	p := d.page[table]
	pageId := d.pageId[table]
	fr, err := d.bm.GetPage(file, pageId)
	if err != nil {
		return err
	}
	if fr == nil {
		return buffer.ErrNoVictim
	}
	copy(fr.Data, p.RawBytes())
	d.bm.MarkDirty(file, pageId)
	d.bm.UnpinPage(file, pageId)
	return nil
}

// Flush force-writes every table's current tail page and the title
// index (if open) to disk.
func (d *Database) Flush() error {
	for table, file := range tableFiles {
		if _, ok := d.page[table]; ok {
			if err := d.flushTail(table, file); err != nil {
				return err
			}
		}
		if err := d.bm.Force(file); err != nil {
			return err
		}
	}
	if d.titleIndex != nil {
		if err := d.titleIndex.Close(); err != nil {
			return err
		}
	}
	return nil
}

// BuildTitleIndex bulk-loads the title B+-tree index from every row of
// Movies, keyed by title. Movies rows must already be sorted by title in
// file order for bulk-load mode's monotonic guard to succeed; callers
// that cannot guarantee this should insert with normal-mode Insert
// instead (ingest.Run sorts Movies by title before appending them for
// this reason).
func (d *Database) BuildTitleIndex() error {
	tree, err := btree.Open(d.bm, config.TitleIndexFile, TitleIndexOrder, d.log)
	if err != nil {
		return err
	}
	for pageId := 0; ; pageId++ {
		fr, err := d.bm.GetPage(config.MoviesFile, pageId)
		if err != nil {
			return err
		}
		if fr == nil {
			break // high-water mark reached (spec §4.2 end-of-file)
		}
		p, err := record.LoadFromBytes(record.Movies, pageId, fr.Data)
		if err != nil {
			d.bm.UnpinPage(config.MoviesFile, pageId)
			return err
		}
		for slot := 0; slot < p.RowCount(); slot++ {
			row, ok := p.GetRow(slot)
			if !ok {
				continue
			}
			title := row.Values[1]
			if err := tree.InsertBulk(title, rid.RID{PageId: pageId, SlotId: slot}); err != nil {
				d.bm.UnpinPage(config.MoviesFile, pageId)
				return err
			}
		}
		d.bm.UnpinPage(config.MoviesFile, pageId)
	}
	if err := tree.Close(); err != nil {
		return err
	}
	d.titleIndex = tree
	return nil
}

// TitleIndex returns the open title index, or nil if BuildTitleIndex has
// not been called (spec §4.5: the orchestrator falls back to a full
// scan + selection when no index exists).
func (d *Database) TitleIndex() *btree.Tree { return d.titleIndex }

// OpenTitleIndexIfPresent opens the title index file if it already
// exists on disk, leaving the orchestrator to fall back to a full scan
// otherwise (spec §7 FileMissing: fatal on the query path in general,
// but the title index is an optional acceleration here, not a required
// table).
func (d *Database) OpenTitleIndexIfPresent() error {
	n, err := d.dio.HighWaterPageCount(config.TitleIndexFile)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	tree, err := btree.Open(d.bm, config.TitleIndexFile, TitleIndexOrder, d.log)
	if err != nil {
		return err
	}
	d.titleIndex = tree
	return nil
}

// CanonicalQuery assembles and returns the fixed canonical plan (spec
// §4.5): a three-way equi-join over Movies, WorkedOn and People,
// restricted to titles in [titleLo, titleHi] and to WorkedOn rows whose
// category matches "director". bufferSize is the total buffer budget
// (in pages) each BNL join in the plan may assume.
func (d *Database) CanonicalQuery(titleLo, titleHi string, bufferSize int) engine.Operator {
	var movies engine.Operator
	moviesCols := record.QualifiedColumnNames(record.Movies)
	if d.titleIndex != nil {
		movies = engine.NewIndexScan(d.bm, config.MoviesFile, record.Movies, moviesCols, d.titleIndex, titleLo, titleHi)
	} else {
		movies = engine.NewSelection(
			engine.NewScan(d.bm, config.MoviesFile, record.Movies, moviesCols, d.log),
			engine.RangePredicate("Movies.title", titleLo, titleHi),
		)
	}
	moviesProj := engine.NewProjection(movies, []engine.ColumnMapping{
		{In: "Movies.movieId", Out: "Movies.movieId"},
		{In: "Movies.title", Out: "Movies.title"},
	})

	directorsSrc := engine.NewSelection(
		engine.NewScan(d.bm, config.WorkedOnFile, record.WorkedOn, record.QualifiedColumnNames(record.WorkedOn), d.log),
		engine.EqualityPredicate("WorkedOn.category", "director"),
	)
	directors := engine.NewMaterializingProjection(
		directorsSrc,
		[]engine.ColumnMapping{
			{In: "WorkedOn.movieId", Out: "WorkedOn.movieId"},
			{In: "WorkedOn.personId", Out: "WorkedOn.personId"},
		},
		d.bm, d.dio, config.TempFilteredWorkedOn,
		engine.MaterializeField{Column: "WorkedOn.movieId", Width: record.ColumnWidths[record.Movies][0]},
		[]engine.MaterializeField{{Column: "WorkedOn.personId", Width: record.ColumnWidths[record.WorkedOn][1]}},
	)

	moviesJoinDirectors := engine.NewBNLJoin(
		moviesProj, directors,
		engine.EqualJoinPredicate("Movies.movieId", "WorkedOn.movieId"),
		bufferSize,
	)

	people := engine.NewScan(d.bm, config.PeopleFile, record.People, record.QualifiedColumnNames(record.People), d.log)
	joined := engine.NewBNLJoin(
		moviesJoinDirectors, people,
		engine.EqualJoinPredicate("WorkedOn.personId", "People.personId"),
		bufferSize,
	)

	return engine.NewProjection(joined, []engine.ColumnMapping{
		{In: "Movies.title", Out: "title"},
		{In: "People.name", Out: "name"},
	})
}

// Close flushes every file and releases disk handles.
func (d *Database) Close() error {
	if err := d.Flush(); err != nil {
		return err
	}
	return d.dio.Close()
}

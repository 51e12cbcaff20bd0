package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jgodjo/imdbdb/catalog"
	"github.com/jgodjo/imdbdb/config"
	"github.com/jgodjo/imdbdb/record"
)

func TestCanonicalQuerySingleDirectorMatch(t *testing.T) {
	cfg := config.NewDBConfigWithBufferSize(t.TempDir(), 32)
	db, err := catalog.Open(cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.AppendRow(record.Movies, []string{"tt0001", "A Movie"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.WorkedOn, []string{"tt0001", "nm1", "director"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.People, []string{"nm1", "Alice"})
	require.NoError(t, err)
	require.NoError(t, db.Flush())

	plan := db.CanonicalQuery("A", "A", 8)
	require.NoError(t, plan.Open())
	defer plan.Close()

	tup, ok, err := plan.Next()
	require.NoError(t, err)
	require.True(t, ok)
	title, _ := tup.Get("title")
	name, _ := tup.Get("name")
	require.Equal(t, "A Movie", title)
	require.Equal(t, "Alice", name)

	_, ok, err = plan.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanonicalQueryEmptyRangeYieldsNoRows(t *testing.T) {
	cfg := config.NewDBConfigWithBufferSize(t.TempDir(), 32)
	db, err := catalog.Open(cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.AppendRow(record.Movies, []string{"tt0001", "A Movie"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.WorkedOn, []string{"tt0001", "nm1", "director"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.People, []string{"nm1", "Alice"})
	require.NoError(t, err)
	require.NoError(t, db.Flush())

	plan := db.CanonicalQuery("Z", "Z", 8)
	require.NoError(t, plan.Open())
	defer plan.Close()

	_, ok, err := plan.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanonicalQuerySkipsNonDirectorRoles(t *testing.T) {
	cfg := config.NewDBConfigWithBufferSize(t.TempDir(), 32)
	db, err := catalog.Open(cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.AppendRow(record.Movies, []string{"tt01", "Film X"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.WorkedOn, []string{"tt01", "nm1", "director"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.WorkedOn, []string{"tt01", "nm2", "actor"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.People, []string{"nm1", "A"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.People, []string{"nm2", "C"})
	require.NoError(t, err)
	require.NoError(t, db.Flush())

	plan := db.CanonicalQuery("A", "Z", 8)
	require.NoError(t, plan.Open())
	defer plan.Close()

	var names []string
	for {
		tup, ok, err := plan.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		name, _ := tup.Get("name")
		names = append(names, name)
	}
	require.Equal(t, []string{"A"}, names)
}

func TestBuildTitleIndexEnablesIndexScan(t *testing.T) {
	cfg := config.NewDBConfigWithBufferSize(t.TempDir(), 32)
	db, err := catalog.Open(cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.AppendRow(record.Movies, []string{"tt0001", "Alpha"})
	require.NoError(t, err)
	_, err = db.AppendRow(record.Movies, []string{"tt0002", "Bravo"})
	require.NoError(t, err)
	require.NoError(t, db.Flush())
	require.NoError(t, db.BuildTitleIndex())
	require.NotNil(t, db.TitleIndex())

	it, err := db.TitleIndex().Search("Alpha")
	require.NoError(t, err)
	r, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, 0, r.SlotId)
}

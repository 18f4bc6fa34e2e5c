package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "plasmiddb-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRaws() []plasmid.RawPlasmid {
	return []plasmid.RawPlasmid{
		{Catalog: 1, ItemName: "pKG1", Name: "pLenti-GFP", StockDate: "2020-01-02", Attachments: []string{"map.gb"}},
		{Catalog: 2, ItemName: "pKG3", Name: "", StockDate: "2020-01-03", TechnicalDetails: "no map", Resistances: []string{"Carb"}},
		{Catalog: 3, ItemName: "pKG3", Name: "pUC19", StockDate: "2020-01-04", Attachments: []string{"puc.gb"}, Vendor: "Addgene", AltName: "50005"},
	}
}

func snapshot(t *testing.T, raws []plasmid.RawPlasmid) Snapshot {
	t.Helper()
	ps, err := plasmid.Build(raws)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	plasmid.NewDefaultLinter(plasmid.DefaultLintOptions()).Lint(ps)
	users := []plasmid.User{{ID: "u1", FirstName: "Ada", LastName: "Lovelace", FullName: "Ada Lovelace"}}
	return Snapshot{
		BuiltAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Users:    users,
		Plasmids: ps,
		Summary:  plasmid.Summarize(ps),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range snapshotTables {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestOpen_StaleSchemaVersionResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.SaveSnapshot(context.Background(), snapshot(t, sampleRaws())); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, err := db.conn.Exec(`PRAGMA user_version = 99`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var version, rows int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM plasmids`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion || rows != 0 {
		t.Errorf("version = %d, rows = %d; want %d and 0", version, rows, schemaVersion)
	}
}

func TestOpen_CurrentVersionKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.SaveSnapshot(context.Background(), snapshot(t, sampleRaws())); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	b, err := db.LastBuild(context.Background())
	if err != nil || b.Plasmids != 3 {
		t.Errorf("build = %+v, err = %v", b, err)
	}
}

func TestSaveSnapshot_Fresh(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	res, err := db.SaveSnapshot(ctx, snapshot(t, sampleRaws()))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if res.Upserted != 3 || res.Unchanged != 0 || res.Removed != 0 || res.BuildID == 0 {
		t.Errorf("result = %+v", res)
	}

	b, err := db.LastBuild(ctx)
	if err != nil {
		t.Fatalf("LastBuild: %v", err)
	}
	if b.Plasmids != 3 || b.ErrorRecords != 1 || b.WarningRecords != 1 {
		t.Errorf("build = %+v", b)
	}
}

func TestSaveSnapshot_SkipsUnchangedAndRemovesStale(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	raws := sampleRaws()
	if _, err := db.SaveSnapshot(ctx, snapshot(t, raws)); err != nil {
		t.Fatal(err)
	}

	raws[0].Name = "pLenti-mCherry"
	res, err := db.SaveSnapshot(ctx, snapshot(t, raws[:2]))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	want := SaveResult{BuildID: res.BuildID, Upserted: 1, Unchanged: 1, Removed: 1}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRaw_RoundTripsInOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	raws := sampleRaws()
	if _, err := db.SaveSnapshot(ctx, snapshot(t, raws)); err != nil {
		t.Fatal(err)
	}

	users, got, err := db.LoadRaw(ctx)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	if diff := cmp.Diff(raws, got); diff != "" {
		t.Errorf("plasmids mismatch (-want +got):\n%s", diff)
	}
	if len(users) != 1 || users[0].FullName != "Ada Lovelace" {
		t.Errorf("users = %+v", users)
	}
}

func TestLoadRaw_DuplicateCatalogKeepsBothRecords(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	raws := []plasmid.RawPlasmid{
		{Catalog: 7, ItemName: "pKG7", Name: "first", StockDate: "2020-01-01"},
		{Catalog: 7, ItemName: "pKG7", Name: "second", StockDate: "2020-01-01"},
	}
	if _, err := db.SaveSnapshot(ctx, snapshot(t, raws)); err != nil {
		t.Fatal(err)
	}
	_, got, err := db.LoadRaw(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "first" || got[1].Name != "second" {
		t.Errorf("got = %+v", got)
	}
}

func TestViolationsByCategory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := db.SaveSnapshot(ctx, snapshot(t, sampleRaws())); err != nil {
		t.Fatal(err)
	}

	rows, err := db.ViolationsByCategory(ctx, plasmid.CategoryInconsistentCatalog)
	if err != nil {
		t.Fatalf("ViolationsByCategory: %v", err)
	}
	if len(rows) != 1 || rows[0].Slug != "pKG2" || rows[0].Severity != plasmid.SeverityError {
		t.Errorf("rows = %+v", rows)
	}

	rows, _ = db.ViolationsByCategory(ctx, plasmid.CategoryDeprecatedResistance)
	if len(rows) != 1 || rows[0].Severity != plasmid.SeverityWarning {
		t.Errorf("warning rows = %+v", rows)
	}

	rows, _ = db.ViolationsByCategory(ctx, "No such category")
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %+v", rows)
	}
}

func TestViolationsReplacedOnResave(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	raws := sampleRaws()
	_, _ = db.SaveSnapshot(ctx, snapshot(t, raws))

	raws[1].Name = "fixed"
	raws[1].ItemName = "pKG2"
	_, _ = db.SaveSnapshot(ctx, snapshot(t, raws))

	rows, _ := db.ViolationsByCategory(ctx, plasmid.CategoryEmptyName)
	if len(rows) != 0 {
		t.Errorf("stale violations survived: %+v", rows)
	}
}

func TestLastBuild_Empty(t *testing.T) {
	db := testDB(t)
	_, err := db.LastBuild(context.Background())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	raws := sampleRaws()
	raws[0].TechnicalDetails = "lentiviral backbone; uniqueword"
	_, _ = db.SaveSnapshot(context.Background(), snapshot(t, raws))

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Slug != "pKG1" {
		t.Errorf("search results = %+v, want 1 hit for pKG1", results)
	}
}

func TestSearch_AllTermsMustMatch(t *testing.T) {
	db := testDB(t)
	raws := sampleRaws()
	raws[0].TechnicalDetails = "lentiviral backbone with CMV promoter"
	raws[2].TechnicalDetails = "high copy backbone"
	_, _ = db.SaveSnapshot(context.Background(), snapshot(t, raws))

	results, err := db.Search("backbone CMV", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Slug != "pKG1" {
		t.Errorf("results = %+v, want only pKG1", results)
	}

	results, err = db.Search("backbone", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len = %d, want 2", len(results))
	}
}

func TestSearch_PunctuationAndBlank(t *testing.T) {
	db := testDB(t)
	_, _ = db.SaveSnapshot(context.Background(), snapshot(t, sampleRaws()))

	if _, err := db.Search(`pLenti-GFP "`, 10); err != nil {
		t.Errorf("punctuated query should not fail: %v", err)
	}
	results, err := db.Search("   ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("blank query: results = %v, err = %v", results, err)
	}
}

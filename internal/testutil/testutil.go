// Package testutil provides shared test helpers: databases, output trees,
// fixture records and an in-memory source.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/gallowaylab/plasmiddb/internal/index"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/storage"
)

// DefaultOwnerID is the fallback owner present in Users.
const DefaultOwnerID = "lab"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "plasmiddb-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestTree creates a temporary output directory with a storage.FS.
func TestTree(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Users returns two members and the lab account.
func Users() []plasmid.RawUser {
	return []plasmid.RawUser{
		{ID: "u1", FirstName: "Ada", LastName: "Lovelace"},
		{ID: "u2", FirstName: "Rosalind", LastName: "Franklin"},
		{ID: DefaultOwnerID, FullName: "Galloway Lab"},
	}
}

// Plasmids returns a small inventory exercising every built-in rule:
//
//	pKG1  clean, owned by u1
//	pKG2  item name pKG3 (error), empty name (warning), owned by u2
//	pKG3  Addgene with a non-numeric alt name (error), Carb (warning), owned by u2
//	pKG4  no map (warning), owner gone so it falls back to the lab
//	pKG5  pcDNA alt name, opted out of a map, owned by u1
//	pKG6  pcDNA alt name, owned by u1
func Plasmids() []plasmid.RawPlasmid {
	return []plasmid.RawPlasmid{
		{Catalog: 1, ItemName: "pKG1", Name: "pUC19", Species: "E. coli", StockDate: "2020-01-02",
			Resistances: []string{"Amp"}, Types: []string{"Cloning"}, Attachments: []string{"puc19.gb"}, OwnerID: "u1"},
		{Catalog: 2, ItemName: "pKG3", Name: "", StockDate: "2020-01-03",
			Attachments: []string{"x.gb"}, OwnerID: "u2"},
		{Catalog: 3, ItemName: "pKG3", Name: "pLenti-Cas9", StockDate: "2020-01-04T10:00:00.000Z",
			Resistances: []string{"Carb"}, Attachments: []string{"cas9.gb"}, Vendor: "Addgene", AltName: "Addgene #52961", OwnerID: "u2"},
		{Catalog: 4, ItemName: "pKG4", Name: "pMini", StockDate: "1/5/2020", OwnerID: "departed"},
		{Catalog: 5, ItemName: "pKG5", Name: "pcDNA3.1-GFP", StockDate: "2020-01-06",
			TechnicalDetails: "CMV promoter; No Map", AltName: "pcDNA3.1", OwnerID: "u1"},
		{Catalog: 6, ItemName: "pKG6", Name: "pcDNA3.1-RFP", StockDate: "2020-01-07",
			Attachments: []string{"rfp.gb"}, AltName: "pcDNA3.1-RFP", OwnerID: "u1"},
	}
}

// FakeSource is an in-memory source.Source.
type FakeSource struct {
	mu       sync.Mutex
	users    []plasmid.RawUser
	plasmids []plasmid.RawPlasmid
	err      error
}

// NewFakeSource returns a source serving the fixtures.
func NewFakeSource() *FakeSource {
	return &FakeSource{users: Users(), plasmids: Plasmids()}
}

// Set replaces the served records.
func (f *FakeSource) Set(users []plasmid.RawUser, plasmids []plasmid.RawPlasmid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users, f.plasmids = users, plasmids
}

// Fail makes every fetch return err; nil restores normal service.
func (f *FakeSource) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// FetchPlasmids implements source.Source.
func (f *FakeSource) FetchPlasmids(context.Context) ([]plasmid.RawPlasmid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]plasmid.RawPlasmid(nil), f.plasmids...), nil
}

// FetchUsers implements source.Source.
func (f *FakeSource) FetchUsers(context.Context) ([]plasmid.RawUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]plasmid.RawUser(nil), f.users...), nil
}

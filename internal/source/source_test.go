package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/storage"
)

func testStore(t *testing.T) storage.Provider {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFile_YAMLDump(t *testing.T) {
	store := testStore(t)
	_ = store.Write("inventory.yaml", []byte(`
users:
  - id: u1
    first_name: Ada
    last_name: Lovelace
plasmids:
  - catalog: 1
    item_name: pKG1
    name: pUC19
    stock_date: "2020-01-02"
    resistances: [Amp]
    owner_id: u1
`))
	f := NewFile(store, "inventory.yaml")
	ctx := context.Background()

	users, err := f.FetchUsers(ctx)
	if err != nil {
		t.Fatalf("FetchUsers: %v", err)
	}
	if diff := cmp.Diff([]plasmid.RawUser{{ID: "u1", FirstName: "Ada", LastName: "Lovelace"}}, users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}

	ps, err := f.FetchPlasmids(ctx)
	if err != nil {
		t.Fatalf("FetchPlasmids: %v", err)
	}
	want := []plasmid.RawPlasmid{{
		Catalog: 1, ItemName: "pKG1", Name: "pUC19", StockDate: "2020-01-02",
		Resistances: []string{"Amp"}, OwnerID: "u1",
	}}
	if diff := cmp.Diff(want, ps); diff != "" {
		t.Errorf("plasmids mismatch (-want +got):\n%s", diff)
	}
}

func TestFile_JSONDump(t *testing.T) {
	store := testStore(t)
	_ = store.Write("inventory.json", []byte(`{"users":[],"plasmids":[{"catalog":5,"item_name":"pKG5","stock_date":"1/2/2020"}]}`))
	ps, err := NewFile(store, "inventory.json").FetchPlasmids(context.Background())
	if err != nil {
		t.Fatalf("FetchPlasmids: %v", err)
	}
	if len(ps) != 1 || ps[0].Catalog != 5 || ps[0].StockDate != "1/2/2020" {
		t.Errorf("plasmids = %+v", ps)
	}
}

func TestFile_WriteDumpRoundTrip(t *testing.T) {
	store := testStore(t)
	d := Dump{
		Users:    []plasmid.RawUser{{ID: "lab", FullName: "Galloway Lab"}},
		Plasmids: []plasmid.RawPlasmid{{Catalog: 9, ItemName: "pKG9", StockDate: "2020-01-01", Vendor: "Addgene", AltName: "123"}},
	}
	if err := WriteDump(store, "out/dump.yaml", d); err != nil {
		t.Fatalf("WriteDump: %v", err)
	}
	f := NewFile(store, "out/dump.yaml")
	users, _ := f.FetchUsers(context.Background())
	ps, _ := f.FetchPlasmids(context.Background())
	if diff := cmp.Diff(d, Dump{Users: users, Plasmids: ps}); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestFile_MissingAndMalformed(t *testing.T) {
	store := testStore(t)
	if _, err := NewFile(store, "absent.yaml").FetchPlasmids(context.Background()); err == nil {
		t.Error("expected error for missing dump")
	}
	_ = store.Write("bad.yaml", []byte("plasmids: {catalog: [}"))
	if _, err := NewFile(store, "bad.yaml").FetchPlasmids(context.Background()); err == nil {
		t.Error("expected error for malformed dump")
	}
}

func TestNew_UnknownMode(t *testing.T) {
	_, err := New(Options{Mode: "ftp"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, apperr.ErrUnsupportedSource) {
		t.Errorf("err = %v, want ErrUnsupportedSource", err)
	}
}

func TestNew_FileMode(t *testing.T) {
	src, err := New(Options{Mode: ModeFile, Path: "x.yaml", Store: testStore(t)}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := src.(*File); !ok {
		t.Errorf("source = %T, want *File", src)
	}
}

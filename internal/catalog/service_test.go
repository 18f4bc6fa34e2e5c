package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/testutil"
)

func testService(t *testing.T) (*Service, *testutil.FakeSource) {
	t.Helper()
	src := testutil.NewFakeSource()
	svc := NewService(src, testutil.TestDB(t), Config{
		DefaultOwnerID: testutil.DefaultOwnerID,
		Lint:           plasmid.DefaultLintOptions(),
	}, testutil.Logger())
	return svc, src
}

func slugs(ps []*plasmid.Plasmid) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Slug
	}
	return out
}

func TestCurrent_BeforeFirstBuild(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.Current(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReload_PublishesView(t *testing.T) {
	svc, _ := testService(t)
	v, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	cur, err := svc.Current()
	if err != nil || cur != v {
		t.Fatalf("Current = %p, %v; want %p", cur, err, v)
	}

	if v.Summary.ErrorRecords != 2 || v.Summary.WarningRecords != 3 {
		t.Errorf("summary records = %d/%d, want 2/3", v.Summary.ErrorRecords, v.Summary.WarningRecords)
	}
	wantCats := []string{
		plasmid.CategoryInconsistentCatalog,
		plasmid.CategorySuspiciousVendor,
		plasmid.CategoryEmptyName,
		plasmid.CategoryDeprecatedResistance,
		plasmid.CategoryMissingMap,
	}
	if diff := cmp.Diff(wantCats, v.Summary.Categories()); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}

	if len(v.AltGroups) != 1 || v.AltGroups[0].Key != "pcDNA" {
		t.Fatalf("alt groups = %+v", v.AltGroups)
	}
	if diff := cmp.Diff([]string{"pKG5", "pKG6"}, slugs(v.AltGroups[0].Members)); diff != "" {
		t.Errorf("pcDNA members (-want +got):\n%s", diff)
	}

	var owners []string
	for _, g := range v.Owners {
		owners = append(owners, g.Name)
	}
	if diff := cmp.Diff([]string{"Ada Lovelace", "Galloway Lab", "Rosalind Franklin"}, owners); diff != "" {
		t.Errorf("owners (-want +got):\n%s", diff)
	}
}

func TestReload_DoesNotAccumulateViolations(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.Reload(ctx)
	v, err := svc.Reload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := v.Plasmid("pKG2")
	if n := len(p.Violations()); n != 2 {
		t.Errorf("violations = %d, want 2 after two reloads", n)
	}
}

func TestReload_PersistsSnapshot(t *testing.T) {
	src := testutil.NewFakeSource()
	db := testutil.TestDB(t)
	svc := NewService(src, db, Config{DefaultOwnerID: testutil.DefaultOwnerID, Lint: plasmid.DefaultLintOptions()}, testutil.Logger())
	if _, err := svc.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	b, err := db.LastBuild(context.Background())
	if err != nil {
		t.Fatalf("LastBuild: %v", err)
	}
	if b.Plasmids != 6 || b.ErrorRecords != 2 || b.WarningRecords != 3 {
		t.Errorf("build = %+v", b)
	}
}

func TestReload_FailureKeepsPreviousView(t *testing.T) {
	svc, src := testService(t)
	ctx := context.Background()
	first, err := svc.Reload(ctx)
	if err != nil {
		t.Fatal(err)
	}

	src.Fail(errors.New("upstream down"))
	if _, err := svc.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	cur, _ := svc.Current()
	if cur != first {
		t.Error("failed reload replaced the published view")
	}
}

func TestReload_MalformedRecordAborts(t *testing.T) {
	svc, src := testService(t)
	raws := testutil.Plasmids()
	raws[3].StockDate = "yesterday"
	src.Set(testutil.Users(), raws)

	_, err := svc.Reload(context.Background())
	if !errors.Is(err, apperr.ErrMalformedDate) {
		t.Errorf("err = %v, want ErrMalformedDate", err)
	}
}

func TestReload_MissingDefaultOwner(t *testing.T) {
	svc, src := testService(t)
	src.Set(testutil.Users()[:2], testutil.Plasmids())
	_, err := svc.Reload(context.Background())
	if !errors.Is(err, apperr.ErrMissingDefaultOwner) {
		t.Errorf("err = %v, want ErrMissingDefaultOwner", err)
	}
}

func TestReload_RunsHooks(t *testing.T) {
	svc, _ := testService(t)
	var got *View
	svc.OnBuild(func(_ context.Context, v *View) { got = v })
	v, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != v {
		t.Error("hook did not receive the published view")
	}
}

func TestReload_UsesInjectedClock(t *testing.T) {
	svc, _ := testService(t)
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	svc.now = func() time.Time { return at }
	v, _ := svc.Reload(context.Background())
	if !v.BuiltAt.Equal(at) {
		t.Errorf("BuiltAt = %v, want %v", v.BuiltAt, at)
	}
}

func TestView_Select(t *testing.T) {
	v, err := Assemble(testutil.Users(), testutil.Plasmids(),
		plasmid.NewDefaultLinter(plasmid.DefaultLintOptions()), testutil.DefaultOwnerID, time.Now())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all", filter: Filter{}, want: []string{"pKG1", "pKG2", "pKG3", "pKG4", "pKG5", "pKG6"}},
		{name: "errors", filter: Filter{Severity: plasmid.SeverityError}, want: []string{"pKG2", "pKG3"}},
		{name: "warnings", filter: Filter{Severity: plasmid.SeverityWarning}, want: []string{"pKG2", "pKG3", "pKG4"}},
		{name: "category", filter: Filter{Category: plasmid.CategoryMissingMap}, want: []string{"pKG4"}},
		{name: "owner", filter: Filter{Owner: "Rosalind Franklin"}, want: []string{"pKG2", "pKG3"}},
		{name: "owner and severity", filter: Filter{Owner: "Rosalind Franklin", Severity: plasmid.SeverityWarning}, want: []string{"pKG2", "pKG3"}},
		{name: "category severity mismatch", filter: Filter{Category: plasmid.CategoryMissingMap, Severity: plasmid.SeverityError}, want: []string{}},
		{name: "unknown owner", filter: Filter{Owner: "Nobody"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, slugs(v.Select(tt.filter))); diff != "" {
				t.Errorf("select (-want +got):\n%s", diff)
			}
		})
	}
}

func TestView_Lookups(t *testing.T) {
	v, err := Assemble(testutil.Users(), testutil.Plasmids(),
		plasmid.NewDefaultLinter(plasmid.DefaultLintOptions()), testutil.DefaultOwnerID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Plasmid("pKG99"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Plasmid err = %v", err)
	}
	g, err := v.Owner("Galloway Lab")
	if err != nil || len(g.Plasmids) != 1 || g.Plasmids[0].Slug != "pKG4" {
		t.Errorf("Owner = %+v, %v", g, err)
	}
	if _, err := v.AltGroup("pcDNA"); err != nil {
		t.Errorf("AltGroup: %v", err)
	}
	if _, err := v.AltGroup("Addgene"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("singleton Addgene group should be dropped, err = %v", err)
	}
}

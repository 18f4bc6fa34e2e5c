package quartzy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

const loginPage = `<!DOCTYPE html><html><head>
<meta name="frontend/config/environment" content="%s">
</head><body></body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeQuartzy serves a login page, a token endpoint and two pages of items.
func fakeQuartzy(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var itemCalls atomic.Int32
	env := url.PathEscape(`{"api":{"clientId":"abc123","host":"x"}}`)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, loginPage, env)
	})
	mux.HandleFunc("/oauth/tokens", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("client_id") != "abc123" || r.PostForm.Get("password") != "p a ss" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token_type": "Bearer", "access_token": "tok"})
	})
	mux.HandleFunc("/groups/42/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		itemCalls.Add(1)
		if r.URL.Query().Get("sort") != "-name" || r.URL.Query().Get("limit") != "2" {
			t.Errorf("query = %v", r.URL.Query())
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"data":[
				{"id":"i1","attributes":{"name":"pKG12","catalog_number":"50005","vendor":{"name":"Addgene"},
				 "attachments":[{"filename":"map.gb"}],
				 "custom_fields":{"pKG#":"12","Plasmid":"pUC19","Species":"E. coli","Resistance markers":["Amp"],
				  "Plasmid type":["Cloning"],"Date stored":"2021-03-04","Technical details":"high copy; no map"}},
				 "relationships":{"owner":{"data":{"id":"u1","type":"user"}}}}
			],"meta":{"pagination":{"page":{"last":2}}}}`)
		case "2":
			fmt.Fprint(w, `{"data":[
				{"id":"i2","attributes":{"name":"pKG13","catalog_number":null,"vendor":null,
				 "custom_fields":{"pKG#":13,"Plasmid":"pLenti","Resistance markers":"Kan","Date stored":"3/4/2021"}},
				 "relationships":{"owner":{"data":null}}}
			],"meta":{"pagination":{"page":{"last":2}}}}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	mux.HandleFunc("/groups/42/users", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"u1","attributes":{"first_name":"Ada","last_name":"Lovelace"}},
			{"id":"lab","attributes":{"first_name":"Galloway","last_name":"Lab","full_name":"Galloway Lab"}}
		],"meta":{"pagination":{"page":{"last":1}}}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &itemCalls
}

func testClient(srv *httptest.Server, password string) *Client {
	return NewClient(Options{
		BaseURL:  srv.URL,
		APIURL:   srv.URL,
		GroupID:  "42",
		Username: "lab@example.org",
		Password: password,
		PageSize: 2,
	}, testLogger())
}

func TestFetchPlasmids_PagesUntilLast(t *testing.T) {
	srv, calls := fakeQuartzy(t)
	c := testClient(srv, "p a ss")
	ctx := context.Background()
	if err := c.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := c.FetchPlasmids(ctx)
	if err != nil {
		t.Fatalf("FetchPlasmids: %v", err)
	}
	want := []plasmid.RawPlasmid{
		{
			Catalog:          12,
			ItemName:         "pKG12",
			Name:             "pUC19",
			Species:          "E. coli",
			Resistances:      []string{"Amp"},
			Types:            []string{"Cloning"},
			StockDate:        "2021-03-04",
			TechnicalDetails: "high copy; no map",
			Attachments:      []string{"map.gb"},
			Vendor:           "Addgene",
			AltName:          "50005",
			OwnerID:          "u1",
		},
		{
			Catalog:     13,
			ItemName:    "pKG13",
			Name:        "pLenti",
			Resistances: []string{"Kan"},
			StockDate:   "3/4/2021",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plasmids mismatch (-want +got):\n%s", diff)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("item calls = %d, want 2", n)
	}
}

func TestFetchUsers(t *testing.T) {
	srv, _ := fakeQuartzy(t)
	c := testClient(srv, "p a ss")
	ctx := context.Background()
	if err := c.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := c.FetchUsers(ctx)
	if err != nil {
		t.Fatalf("FetchUsers: %v", err)
	}
	want := []plasmid.RawUser{
		{ID: "u1", FirstName: "Ada", LastName: "Lovelace"},
		{ID: "lab", FirstName: "Galloway", LastName: "Lab", FullName: "Galloway Lab"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv, _ := fakeQuartzy(t)
	c := testClient(srv, "wrong")
	err := c.Login(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want 401 login failure", err)
	}
}

func TestFetchPlasmids_WithoutLogin(t *testing.T) {
	srv, _ := fakeQuartzy(t)
	c := testClient(srv, "p a ss")
	if _, err := c.FetchPlasmids(context.Background()); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestParseClientID(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		want    string
		wantErr bool
	}{
		{
			name: "escaped json",
			page: fmt.Sprintf(loginPage, url.PathEscape(`{"api":{"clientId":"x+y"}}`)),
			want: "x+y",
		},
		{name: "no meta", page: "<html></html>", wantErr: true},
		{name: "no client id", page: fmt.Sprintf(loginPage, url.PathEscape(`{"api":{}}`)), wantErr: true},
		{name: "not json", page: fmt.Sprintf(loginPage, "garbage"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClientID([]byte(tt.page))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItemToRaw_MissingCatalog(t *testing.T) {
	var it item
	if err := json.Unmarshal([]byte(`{"id":"x","attributes":{"custom_fields":{"Plasmid":"p"}}}`), &it); err != nil {
		t.Fatal(err)
	}
	if _, err := it.toRaw(); err == nil {
		t.Fatal("expected error for missing pKG#")
	}
}

func TestItemToRaw_NonStringFieldsKeepUpstreamValue(t *testing.T) {
	var it item
	body := `{"id":"x","attributes":{"name":"pKG7","custom_fields":{
		"pKG#":7,"Plasmid":"pX","Species":null,"Date stored":20220105,"Technical details":{"note":"x"}}}}`
	if err := json.Unmarshal([]byte(body), &it); err != nil {
		t.Fatal(err)
	}
	raw, err := it.toRaw()
	if err != nil {
		t.Fatalf("toRaw: %v", err)
	}
	if raw.StockDate != "20220105" {
		t.Errorf("StockDate = %q, want the upstream number", raw.StockDate)
	}
	if raw.Species != "" {
		t.Errorf("Species = %q, null should read as empty", raw.Species)
	}
	if raw.TechnicalDetails != `{"note":"x"}` {
		t.Errorf("TechnicalDetails = %q", raw.TechnicalDetails)
	}
}

func TestWait_RespectsContext(t *testing.T) {
	c := NewClient(Options{RequestDelay: 1e9}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

package checksum

import "testing"

func TestSum_KnownDigest(t *testing.T) {
	got := Sum([]byte("pKG1"))
	if len(got) != 64 {
		t.Fatalf("len = %d, want 64", len(got))
	}
	if got != Sum([]byte("pKG1")) {
		t.Error("Sum is not deterministic")
	}
	if got == Sum([]byte("pKG2")) {
		t.Error("different inputs share a digest")
	}
	if empty := Sum(nil); empty != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("empty digest = %s", empty)
	}
}

func TestRecord(t *testing.T) {
	type rec struct {
		Catalog int    `json:"catalog"`
		Name    string `json:"name"`
	}
	raw, sum, err := Record(rec{Catalog: 1, Name: "pUC19"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if string(raw) != `{"catalog":1,"name":"pUC19"}` {
		t.Errorf("raw = %s", raw)
	}
	if sum != Sum(raw) {
		t.Error("sum does not match the encoding")
	}
	if _, other, _ := Record(rec{Catalog: 1, Name: "pUC18"}); other == sum {
		t.Error("changed record kept its sum")
	}
}

func TestRecord_Unencodable(t *testing.T) {
	if _, _, err := Record(make(chan int)); err == nil {
		t.Error("expected encode error")
	}
}

package seed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/kbview/internal/apperr"
)

func TestLoad_Embedded(t *testing.T) {
	recs, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 8 {
		t.Fatalf("len = %d, want 8", len(recs))
	}
	if recs[0].Title != "Test" || recs[0].InUse == nil || !*recs[0].InUse {
		t.Errorf("first = %+v", recs[0])
	}
	if recs[1].InUse != nil {
		t.Errorf("in_use should be unset for %q", recs[1].Title)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	data := []byte("records:\n  - title: A\n    type: Post\n    date: today\n    source: s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "A" {
		t.Errorf("recs = %+v", recs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_InvalidRecord(t *testing.T) {
	_, err := Parse([]byte("records:\n  - title: A\n    type: Post\n"))
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !verr.Missing("date") || !verr.Missing("source") {
		t.Errorf("fields = %v", verr.Fields)
	}
}

func TestParse_BadYAML(t *testing.T) {
	if _, err := Parse([]byte("records: [")); err == nil {
		t.Error("expected parse error")
	}
}

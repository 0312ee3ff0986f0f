package buttons

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseAccessList(t *testing.T) {
	input := strings.Join([]string{
		"# id:secret,name",
		"0123ABCD:s3cret,alice",
		"4567efab:other,bob",
		"broken-row-without-colon,carol",
		"",
		"  89ab0000 : spaced ,dave",
		"0123abcd:rotated,alice",
	}, "\n")

	var skipped []int
	list, err := ParseAccessList(strings.NewReader(input), 0, ',', func(line int, err error) {
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("skip error = %v, want ErrInvalidRecord", err)
		}
		skipped = append(skipped, line)
	})
	if err != nil {
		t.Fatalf("ParseAccessList() error = %v", err)
	}

	want := AccessList{
		"0123abcd": "rotated",
		"4567efab": "other",
		"89ab0000": "spaced",
	}
	if len(list) != len(want) {
		t.Fatalf("len(list) = %d, want %d: %v", len(list), len(want), list)
	}
	for id, secret := range want {
		if list[id] != secret {
			t.Errorf("list[%q] = %q, want %q", id, list[id], secret)
		}
	}
	if len(skipped) != 1 || skipped[0] != 4 {
		t.Errorf("skipped lines = %v, want [4]", skipped)
	}
}

func TestParseAccessList_ColumnAndComma(t *testing.T) {
	input := "alice;0123abcd:s3cret\nbob\n"

	var skips int
	list, err := ParseAccessList(strings.NewReader(input), 1, ';', func(int, error) { skips++ })
	if err != nil {
		t.Fatalf("ParseAccessList() error = %v", err)
	}
	if list["0123abcd"] != "s3cret" {
		t.Errorf("list = %v", list)
	}
	if skips != 1 {
		t.Errorf("skips = %d, want 1 (row without column 1)", skips)
	}
}

func TestParseAccessList_QuoteErrorSkipped(t *testing.T) {
	input := "0123abcd:s3cret\n\"unterminated:x\n"

	list, err := ParseAccessList(strings.NewReader(input), 0, ',', nil)
	if err != nil {
		t.Fatalf("ParseAccessList() error = %v", err)
	}
	if list["0123abcd"] != "s3cret" {
		t.Errorf("list = %v", list)
	}
}

func TestCSVSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttons.csv")
	if err := os.WriteFile(path, []byte("0123abcd:s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	list, err := CSVSource{Path: path, Comma: ','}.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(list) = %d, want 1", len(list))
	}

	if _, err := (CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}).Load(); err == nil {
		t.Error("Load() on missing file should fail")
	}
}

func TestAccessList_IDs(t *testing.T) {
	list := AccessList{"a": "1", "b": "2"}
	ids := list.IDs()
	if len(ids) != 2 || !ids.Has("a") || !ids.Has("b") {
		t.Errorf("IDs() = %v", ids)
	}
}

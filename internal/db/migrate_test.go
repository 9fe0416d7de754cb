package db

import (
	"testing"
	"testing/fstest"
)

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_archive.up.sql":  {Data: []byte("SELECT 2")},
		"0001_init.up.sql":     {Data: []byte("SELECT 1")},
		"0001_init.down.sql":   {Data: []byte("SELECT 0")},
		"README.md":            {Data: []byte("docs")},
		"nested/0003_x.up.sql": {Data: []byte("SELECT 3")},
	}

	got, err := listMigrations(fsys)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"0001_init.up.sql", "0002_archive.up.sql"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("migration %d = %s, want %s", i, got[i], want[i])
		}
	}
}

package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/asdine/storm/v3"
	. "github.com/smartystreets/goconvey/convey"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := storm.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestJournal(t *testing.T) {
	store := createTestStore(t)

	Convey("an empty journal yields no entries", t, func() {
		entries, err := store.Recent(10)
		So(err, ShouldBeNil)
		So(entries, ShouldBeEmpty)
	})

	Convey("appended commands come back newest first", t, func() {
		base := time.Now().Add(-time.Minute)
		for i, code := range []string{"001", "101", "000"} {
			err := store.Append(Entry{
				Code:   code,
				Action: code,
				Remote: "test",
				At:     base.Add(time.Duration(i) * time.Second),
			})
			So(err, ShouldBeNil)
		}

		entries, err := store.Recent(2)
		So(err, ShouldBeNil)
		So(entries, ShouldHaveLength, 2)
		So(entries[0].Code, ShouldEqual, "000")
		So(entries[1].Code, ShouldEqual, "101")
	})

	Convey("append stamps the time when missing", t, func() {
		So(store.Append(Entry{Code: "111", Action: "go-straight"}), ShouldBeNil)

		entries, err := store.Recent(1)
		So(err, ShouldBeNil)
		So(entries[0].At.IsZero(), ShouldBeFalse)
	})
}

package listing

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/evcraddock/house-market/internal/db"
	"github.com/evcraddock/house-market/internal/geocode"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestInsertAndGetByID(t *testing.T) {
	repo, _ := testRepo(t)

	discounted := int64(1200)
	rec := &Record{
		ID:              "l1",
		Type:            TypeRent,
		Name:            "Riverside loft",
		Bedrooms:        2,
		Bathrooms:       1,
		Parking:         true,
		Offer:           true,
		RegularPrice:    1500,
		DiscountedPrice: &discounted,
		Location:        "9 River Rd, Troy, NY",
		Geolocation:     geocode.Point{Lat: 42.73, Lng: -73.69},
		ImageURLs:       []string{"u1", "u2"},
		UserRef:         "owner",
		Timestamp:       baseTime,
	}

	if err := repo.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetByID("l1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("got %+v\nwant %+v", got, rec)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, _ := testRepo(t)

	_, err := repo.GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateReplacesDocument(t *testing.T) {
	repo, _ := testRepo(t)

	discounted := int64(90)
	rec := testRecord("l1", TypeSale, 0)
	rec.Offer = true
	rec.DiscountedPrice = &discounted
	if err := repo.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated := *rec
	updated.Offer = false
	updated.DiscountedPrice = nil
	updated.Name = "Renamed listing"
	updated.ImageURLs = []string{"new"}
	updated.Timestamp = baseTime.Add(time.Hour)

	if err := repo.Update(&updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID("l1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DiscountedPrice != nil {
		t.Errorf("discounted price should be cleared, got %d", *got.DiscountedPrice)
	}
	if got.Name != "Renamed listing" || !reflect.DeepEqual(got.ImageURLs, []string{"new"}) {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Timestamp.Equal(updated.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, updated.Timestamp)
	}
}

func TestUpdateNotFound(t *testing.T) {
	repo, _ := testRepo(t)

	err := repo.Update(testRecord("missing", TypeSale, 0))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	repo, _ := testRepo(t)

	if err := repo.Insert(testRecord("l1", TypeSale, 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Delete("l1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID("l1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected listing to be gone, got %v", err)
	}
	if err := repo.Delete("l1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListPagination(t *testing.T) {
	repo, _ := testRepo(t)

	for i := 0; i < 25; i++ {
		typ := TypeRent
		if i%5 == 0 {
			typ = TypeSale
		}
		if err := repo.Insert(testRecord(fmt.Sprintf("l%02d", i), typ, i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	var seen []string
	cursor := ""
	pages := 0
	for {
		page, err := repo.List(ListOptions{Type: TypeRent, Cursor: cursor})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pages++
		for _, l := range page.Listings {
			if l.Type != TypeRent {
				t.Errorf("listing %s has type %s", l.ID, l.Type)
			}
			seen = append(seen, l.ID)
		}
		if !page.HasMore {
			if page.NextCursor != "" {
				t.Error("last page should not carry a cursor")
			}
			break
		}
		cursor = page.NextCursor
	}

	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
	if len(seen) != 20 {
		t.Fatalf("saw %d listings, want 20", len(seen))
	}
	if seen[0] != "l24" {
		t.Errorf("first listing = %s, want newest l24", seen[0])
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] >= seen[i-1] {
			t.Fatalf("listings not newest first: %v", seen)
		}
	}
}

func TestListExactPageHasNoMore(t *testing.T) {
	repo, _ := testRepo(t)

	for i := 0; i < DefaultPageSize; i++ {
		if err := repo.Insert(testRecord(fmt.Sprintf("l%02d", i), TypeSale, i)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := repo.List(ListOptions{Type: TypeSale})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Listings) != DefaultPageSize || page.HasMore {
		t.Errorf("got %d listings, has_more=%v", len(page.Listings), page.HasMore)
	}
}

func TestListTiesBrokenByID(t *testing.T) {
	repo, _ := testRepo(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Insert(testRecord(id, TypeSale, 0)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	first, err := repo.List(ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := repo.List(ListOptions{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var ids []string
	for _, l := range append(first.Listings, second.Listings...) {
		ids = append(ids, l.ID)
	}
	if !reflect.DeepEqual(ids, []string{"c", "b", "a"}) {
		t.Errorf("ids = %v, want [c b a]", ids)
	}
}

func TestListFilters(t *testing.T) {
	repo, d := testRepo(t)
	insertTestUser(t, d, "other")

	offer := testRecord("offer", TypeSale, 1)
	offer.Offer = true
	discounted := int64(50)
	offer.DiscountedPrice = &discounted

	mine := testRecord("mine", TypeRent, 2)
	theirs := testRecord("theirs", TypeRent, 3)
	theirs.UserRef = "other"

	for _, r := range []*Record{offer, mine, theirs} {
		if err := repo.Insert(r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all", ListOptions{}, []string{"theirs", "mine", "offer"}},
		{"offers", ListOptions{OfferOnly: true}, []string{"offer"}},
		{"by owner", ListOptions{UserRef: "other"}, []string{"theirs"}},
		{"rent by owner", ListOptions{Type: TypeRent, UserRef: "owner"}, []string{"mine"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(tt.opts)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var ids []string
			for _, l := range page.Listings {
				ids = append(ids, l.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestListInvalidCursor(t *testing.T) {
	repo, _ := testRepo(t)

	for _, c := range []string{"!!!", "bm9jb2xvbg", "eDpmb28"} {
		if _, err := repo.List(ListOptions{Cursor: c}); !errors.Is(err, ErrValidation) {
			t.Errorf("cursor %q: err = %v, want ErrValidation", c, err)
		}
	}
}

func TestRecent(t *testing.T) {
	repo, _ := testRepo(t)

	for i := 0; i < 8; i++ {
		typ := TypeSale
		if i%2 == 0 {
			typ = TypeRent
		}
		if err := repo.Insert(testRecord(fmt.Sprintf("l%d", i), typ, i)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := repo.Recent(0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != RecentCount {
		t.Fatalf("got %d listings, want %d", len(got), RecentCount)
	}
	if got[0].ID != "l7" || got[4].ID != "l3" {
		t.Errorf("recent = %s..%s, want l7..l3", got[0].ID, got[4].ID)
	}
}

func testRecord(id string, typ Type, minutes int) *Record {
	return &Record{
		ID:           id,
		Type:         typ,
		Name:         "Test listing name",
		Bedrooms:     1,
		Bathrooms:    1,
		RegularPrice: 100,
		Location:     "1 Main St",
		Geolocation:  geocode.Point{Lat: 40, Lng: -73},
		ImageURLs:    []string{"u-" + id},
		UserRef:      "owner",
		Timestamp:    baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

func testRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	insertTestUser(t, d, "owner")
	return NewRepository(d), d
}

func insertTestUser(t *testing.T, d *sql.DB, id string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO users (id, name, email) VALUES (?, ?, ?)`, id, "Test User", id+"@example.com"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

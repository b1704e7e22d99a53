package multires

import (
	"errors"
	"testing"

	"imagefusion/pkg/raster"
)

func TestGetAndHas(t *testing.T) {
	s := NewStore()
	img := raster.New(2, 2, 1)
	s.Set("high", 1, img)

	if !s.Has("high", 1) {
		t.Error("Has should report stored image")
	}
	if s.Has("high", 2) || s.Has("low", 1) {
		t.Error("Has reports images that were never stored")
	}

	got, err := s.Get("high", 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != img {
		t.Error("Get must return the stored image by reference")
	}

	if _, err := s.Get("low", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetReplaces(t *testing.T) {
	s := NewStore()
	first := raster.New(2, 2, 1)
	second := raster.New(3, 3, 1)
	s.Set("low", 5, first)
	s.Set("low", 5, second)

	if s.Len() != 1 {
		t.Fatalf("expected one entry, got %d", s.Len())
	}
	got, _ := s.Get("low", 5)
	if got != second {
		t.Error("Set did not replace the previous image")
	}
}

func TestGetAnyPicksEarliestDate(t *testing.T) {
	s := NewStore()
	early := raster.New(2, 2, 1)
	late := raster.New(2, 2, 1)
	s.Set("low", 9, late)
	s.Set("low", 3, early)

	got, err := s.GetAny("low")
	if err != nil {
		t.Fatalf("GetAny failed: %v", err)
	}
	if got != early {
		t.Error("GetAny should return the earliest date's image")
	}

	if _, err := s.GetAny("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAnyAtAmbiguity(t *testing.T) {
	s := NewStore()
	s.Set("high", 1, raster.New(2, 2, 1))

	if _, err := s.GetAnyAt(1); err != nil {
		t.Errorf("unique date lookup failed: %v", err)
	}
	if _, err := s.GetAnyAt(2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	s.Set("low", 1, raster.New(2, 2, 1))
	if _, err := s.GetAnyAt(1); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestTagsAndDates(t *testing.T) {
	s := NewStore()
	s.Set("low", 3, raster.New(1, 1, 1))
	s.Set("low", 1, raster.New(1, 1, 1))
	s.Set("high", 1, raster.New(1, 1, 1))

	tags := s.Tags()
	if len(tags) != 2 || tags[0] != "high" || tags[1] != "low" {
		t.Errorf("Tags = %v", tags)
	}

	dates := s.Dates("low")
	if len(dates) != 2 || dates[0] != 1 || dates[1] != 3 {
		t.Errorf("Dates = %v", dates)
	}
	if len(s.Dates("missing")) != 0 {
		t.Error("Dates of missing tag should be empty")
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.Set("high", 1, raster.New(1, 1, 1))
	s.Remove("high", 1)
	if s.Has("high", 1) {
		t.Error("Remove did not delete the entry")
	}
	// Removing an absent entry is a no-op.
	s.Remove("high", 1)
}

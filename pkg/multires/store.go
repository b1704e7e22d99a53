// Package multires keeps the raster images a fusion run reads from,
// indexed by resolution tag and acquisition date. Tags are free-form
// strings ("high", "low", a sensor name); dates are integer time steps.
// The store never copies images: callers and algorithms read through
// shared references.
package multires

import (
	"errors"
	"fmt"
	"sort"

	"imagefusion/pkg/raster"
)

// ErrNotFound is returned when no image is stored under the requested
// tag and date.
var ErrNotFound = errors.New("multires: image not found")

// ErrAmbiguous is returned by date-only lookups when images with
// different tags exist at that date.
var ErrAmbiguous = errors.New("multires: ambiguous lookup")

type key struct {
	tag  string
	date int
}

// Store maps (tag, date) pairs to raster images. At most one image is
// stored per pair; Set replaces. The zero value is not usable, use
// NewStore.
type Store struct {
	images map[key]*raster.Image
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{images: make(map[key]*raster.Image)}
}

// Set stores img under (tag, date), replacing any previous image there.
func (s *Store) Set(tag string, date int, img *raster.Image) {
	s.images[key{tag, date}] = img
}

// Remove deletes the image stored under (tag, date), if any.
func (s *Store) Remove(tag string, date int) {
	delete(s.images, key{tag, date})
}

// Has reports whether an image is stored under (tag, date).
func (s *Store) Has(tag string, date int) bool {
	_, ok := s.images[key{tag, date}]
	return ok
}

// Get returns the image stored under (tag, date). It returns
// ErrNotFound if the pair is absent.
func (s *Store) Get(tag string, date int) (*raster.Image, error) {
	img, ok := s.images[key{tag, date}]
	if !ok {
		return nil, fmt.Errorf("%w: tag %q at date %d", ErrNotFound, tag, date)
	}
	return img, nil
}

// GetAny returns the image with the given tag at the earliest date it
// is available. It returns ErrNotFound if no image carries the tag.
func (s *Store) GetAny(tag string) (*raster.Image, error) {
	dates := s.Dates(tag)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: tag %q at any date", ErrNotFound, tag)
	}
	return s.images[key{tag, dates[0]}], nil
}

// GetAnyAt returns the image at the given date regardless of tag. The
// lookup succeeds only if exactly one tag has an image at that date;
// otherwise it returns ErrNotFound or ErrAmbiguous.
func (s *Store) GetAnyAt(date int) (*raster.Image, error) {
	var found *raster.Image
	n := 0
	for k, img := range s.images {
		if k.date == date {
			found = img
			n++
		}
	}
	switch n {
	case 0:
		return nil, fmt.Errorf("%w: any tag at date %d", ErrNotFound, date)
	case 1:
		return found, nil
	default:
		return nil, fmt.Errorf("%w: %d tags at date %d", ErrAmbiguous, n, date)
	}
}

// Tags returns the distinct tags in the store, sorted.
func (s *Store) Tags() []string {
	seen := make(map[string]bool)
	var tags []string
	for k := range s.images {
		if !seen[k.tag] {
			seen[k.tag] = true
			tags = append(tags, k.tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Dates returns the dates at which the given tag has an image, in
// ascending order.
func (s *Store) Dates(tag string) []int {
	var dates []int
	for k := range s.images {
		if k.tag == tag {
			dates = append(dates, k.date)
		}
	}
	sort.Ints(dates)
	return dates
}

// Len returns the number of stored images.
func (s *Store) Len() int { return len(s.images) }

package resolver

import (
	"fmt"
	"sort"
	"time"

	"github.com/oshokin/ota-server/internal/config"
	"github.com/oshokin/ota-server/internal/domain/build"
)

// releaseDateLayout is the date format of the optional release_date field.
const releaseDateLayout = "2006-01-02"

// Strategy orders the candidate successors of a build. Strategies must be
// deterministic for a fixed registry and artifact state.
type Strategy interface {
	// Name returns the configuration name of the strategy.
	Name() string
	// Successors returns the builds after currentID, nearest first.
	// currentID is known to be present in the document.
	Successors(doc *build.Document, currentID string) []string
}

// ModTimeIndex provides artifact modification times for the modtime strategy.
type ModTimeIndex interface {
	ModTime(id string) (time.Time, error)
}

// StrategyFor returns the strategy registered under the configuration name.
func StrategyFor(name string, modTimes ModTimeIndex) (Strategy, error) {
	switch name {
	case config.OrderingInsertion:
		return InsertionOrder(), nil
	case config.OrderingReleaseDate:
		return ReleaseDateOrder(), nil
	case config.OrderingModTime:
		return ModTimeOrder(modTimes), nil
	default:
		return nil, fmt.Errorf("unknown ordering strategy %q", name)
	}
}

// insertionStrategy sequences builds by registry insertion order. This is the
// canonical behavior: the successor is simply the next registry slot.
type insertionStrategy struct{}

// InsertionOrder returns the canonical insertion-order strategy.
func InsertionOrder() Strategy {
	return insertionStrategy{}
}

func (insertionStrategy) Name() string {
	return config.OrderingInsertion
}

func (insertionStrategy) Successors(doc *build.Document, currentID string) []string {
	idx, ok := doc.IndexOf(currentID)
	if !ok {
		return nil
	}

	ids := doc.IDs()

	return ids[idx+1:]
}

// releaseDateStrategy sequences builds by their release_date field. Builds
// without a parseable date never appear as successors; a current build
// without one has no successors.
type releaseDateStrategy struct{}

// ReleaseDateOrder returns the release-date strategy.
func ReleaseDateOrder() Strategy {
	return releaseDateStrategy{}
}

func (releaseDateStrategy) Name() string {
	return config.OrderingReleaseDate
}

func (releaseDateStrategy) Successors(doc *build.Document, currentID string) []string {
	current, _ := doc.Get(currentID)

	currentDate, err := time.Parse(releaseDateLayout, current.ReleaseDate)
	if err != nil {
		return nil
	}

	type dated struct {
		id   string
		date time.Time
	}

	var later []dated

	for _, id := range doc.IDs() {
		if id == currentID {
			continue
		}

		rec, _ := doc.Get(id)

		date, err := time.Parse(releaseDateLayout, rec.ReleaseDate)
		if err != nil || !date.After(currentDate) {
			continue
		}

		later = append(later, dated{id: id, date: date})
	}

	sort.Slice(later, func(i, j int) bool {
		if !later[i].date.Equal(later[j].date) {
			return later[i].date.Before(later[j].date)
		}

		return later[i].id < later[j].id
	})

	ids := make([]string, 0, len(later))
	for _, d := range later {
		ids = append(ids, d.id)
	}

	return ids
}

// modTimeStrategy sequences builds by artifact modification time with a
// lexical build-id tie-break. Builds without a published artifact never
// appear as successors.
type modTimeStrategy struct {
	// index provides artifact modification times.
	index ModTimeIndex
}

// ModTimeOrder returns the artifact-timestamp strategy.
func ModTimeOrder(index ModTimeIndex) Strategy {
	return &modTimeStrategy{index: index}
}

func (*modTimeStrategy) Name() string {
	return config.OrderingModTime
}

func (s *modTimeStrategy) Successors(doc *build.Document, currentID string) []string {
	currentTime, err := s.index.ModTime(currentID)
	if err != nil {
		return nil
	}

	type stamped struct {
		id      string
		modTime time.Time
	}

	var later []stamped

	for _, id := range doc.IDs() {
		if id == currentID {
			continue
		}

		modTime, err := s.index.ModTime(id)
		if err != nil {
			continue
		}

		if modTime.After(currentTime) || (modTime.Equal(currentTime) && id > currentID) {
			later = append(later, stamped{id: id, modTime: modTime})
		}
	}

	sort.Slice(later, func(i, j int) bool {
		if !later[i].modTime.Equal(later[j].modTime) {
			return later[i].modTime.Before(later[j].modTime)
		}

		return later[i].id < later[j].id
	})

	ids := make([]string, 0, len(later))
	for _, st := range later {
		ids = append(ids, st.id)
	}

	return ids
}

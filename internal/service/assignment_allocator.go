package service

import (
	"fmt"
	"math/rand"

	"github.com/noah-isme/sma-class-assigner/internal/models"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
)

// Rand is the random source used to backfill schedules.
type Rand interface {
	Intn(n int) int
}

// NewSeededRand returns a deterministic Rand for seed.
func NewSeededRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// allocatePreferences walks preferences in rank order and claims a seat in each class
// that still has one, stopping once maxClasses seats are held. Full or unknown classes
// are skipped and not revisited.
func allocatePreferences(preferences []string, table *CapacityTable, maxClasses int) []string {
	periods := make([]string, 0, maxClasses)
	for _, classID := range preferences {
		if len(periods) == maxClasses {
			break
		}
		if table.Take(classID) {
			periods = append(periods, classID)
		}
	}
	return periods
}

// backfill tops periods up to maxClasses with classes drawn uniformly from those with
// free seats. Classes the student already holds stay in the draw, so a class can
// appear twice in one schedule.
func backfill(member string, periods []string, table *CapacityTable, maxClasses int, rng Rand) ([]string, error) {
	for len(periods) < maxClasses {
		candidates := table.Available()
		if len(candidates) == 0 {
			detail := &models.CapacityExhaustedError{
				Member:    member,
				Assigned:  len(periods),
				Shortfall: maxClasses - len(periods),
			}
			return nil, appErrors.Wrap(detail, appErrors.ErrCapacityExhausted.Code, appErrors.ErrCapacityExhausted.Status,
				fmt.Sprintf("capacity exhausted while scheduling %s (%d short)", member, detail.Shortfall))
		}
		pick := candidates[rng.Intn(len(candidates))]
		table.Take(pick)
		periods = append(periods, pick)
	}
	return periods, nil
}

// insertSpecialSlot places marker into periods based on the student's allocation rank:
// two from the end for even ranks, one from the end for odd ranks. Short schedules put
// the marker first.
func insertSpecialSlot(periods []string, rank int, marker string) []string {
	offset := 2
	if rank%2 == 1 {
		offset = 1
	}
	pos := len(periods) - offset
	if pos < 0 {
		pos = 0
	}
	out := make([]string, 0, len(periods)+1)
	out = append(out, periods[:pos]...)
	out = append(out, marker)
	return append(out, periods[pos:]...)
}

// firstRepeat returns the first class held more than once in periods and how many
// seats in periods are repeats.
func firstRepeat(periods []string) (string, int) {
	seen := make(map[string]bool, len(periods))
	first := ""
	repeats := 0
	for _, classID := range periods {
		if seen[classID] {
			if first == "" {
				first = classID
			}
			repeats++
			continue
		}
		seen[classID] = true
	}
	return first, repeats
}

package service

import (
	"sort"

	"github.com/noah-isme/sma-class-assigner/internal/models"
)

// OrderMembers returns students in allocation order: higher grade first, then earlier
// submission. Students tied on both keep their input order. The input is not modified.
func OrderMembers(members []models.Member) []models.Member {
	ordered := make([]models.Member, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Grade != ordered[j].Grade {
			return ordered[i].Grade > ordered[j].Grade
		}
		return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt)
	})
	return ordered
}

package eligibility

import (
	"sort"
	"strings"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
)

// Rank puts candidates whose pincode matches the requester's first. The
// original order is kept within each group. The pincode never excludes anyone.
func Rank(candidates []models.User, pincode string) []models.User {
	ranked := make([]models.User, len(candidates))
	copy(ranked, candidates)

	want := strings.TrimSpace(pincode)
	if want == "" {
		return ranked
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return matches(ranked[i], want) && !matches(ranked[j], want)
	})
	return ranked
}

func matches(candidate models.User, pincode string) bool {
	return strings.TrimSpace(candidate.Pincode) == pincode
}

package related

import (
	"fmt"

	"github.com/asakaida/relata/internal/entities"
)

// currentOnly keeps, per subject, the relationship whose effective date is the
// latest one not starting after now. Undated relationships are dropped.
func currentOnly(items []*entities.RelatedItem, now float64) []*entities.RelatedItem {
	latest := make(map[int64]string)
	chosen := make(map[int64]*entities.RelatedItem)

	for _, it := range items {
		d := it.EffectiveDate
		if d == nil || d.StartsAfter(now) {
			continue
		}
		token := fmt.Sprintf("%s/%019d", d.Token(), it.RelationID)
		if token > latest[it.SubjectID] {
			latest[it.SubjectID] = token
			chosen[it.SubjectID] = it
		}
	}

	kept := make([]*entities.RelatedItem, 0, len(chosen))
	for _, it := range items {
		if chosen[it.SubjectID] == it {
			kept = append(kept, it)
		}
	}
	return kept
}

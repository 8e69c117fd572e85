package related

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/asakaida/relata/internal/entities"
)

const sortLabel = "label"

type sortKey func(it *entities.RelatedItem) interface{}

// sortItems orders items by the requested fields, then by item and relation id.
// Without sort fields the order is label, identifier, item id, relation id.
func sortItems(items []*entities.RelatedItem, opts *Options, entity *entities.EntityDef, link *entities.LinkDef) {
	var keys []sortKey
	if len(opts.Sort) == 0 {
		keys = append(keys, sortKeyFor(sortLabel, entity, link))
		if entity != nil && entity.IdnoSortField != "" {
			keys = append(keys, sortKeyFor(entity.IdnoSortField, entity, link))
		} else {
			keys = append(keys, func(it *entities.RelatedItem) interface{} { return it.Idno })
		}
	}
	for _, f := range opts.Sort {
		keys = append(keys, sortKeyFor(f, entity, link))
	}
	keys = append(keys,
		func(it *entities.RelatedItem) interface{} { return it.ItemID },
		func(it *entities.RelatedItem) interface{} { return it.RelationID },
	)

	desc := opts.descending()
	sort.SliceStable(items, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(key(items[i]), key(items[j]))
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// sortKeyFor maps a field name, optionally qualified with the related or link table, to a key
func sortKeyFor(field string, entity *entities.EntityDef, link *entities.LinkDef) sortKey {
	table, name := "", field
	if i := strings.IndexByte(field, '.'); i >= 0 {
		table, name = field[:i], field[i+1:]
	}

	if link != nil && table == link.Name && (entity == nil || entity.Name != link.Name) {
		return relationKey(name, link)
	}
	if name == sortLabel || (entity != nil && entity.LabelTable != "" && table == entity.LabelTable) {
		return func(it *entities.RelatedItem) interface{} { return it.Label }
	}
	return func(it *entities.RelatedItem) interface{} { return it.Fields[name] }
}

func relationKey(field string, link *entities.LinkDef) sortKey {
	switch field {
	case link.Key:
		return func(it *entities.RelatedItem) interface{} { return it.RelationID }
	case link.RankField:
		return func(it *entities.RelatedItem) interface{} { return it.Rank }
	case link.TypeField:
		return func(it *entities.RelatedItem) interface{} { return it.RelationshipTypename }
	case link.SourceInfoField:
		return func(it *entities.RelatedItem) interface{} { return it.SourceInfo }
	case link.PrimaryField:
		return func(it *entities.RelatedItem) interface{} { return it.IsPrimary }
	case link.EffectiveStartField, link.EffectiveEndField, "effective_date":
		return func(it *entities.RelatedItem) interface{} {
			if it.EffectiveDate == nil {
				return nil
			}
			return it.EffectiveDate.Start
		}
	}
	return func(it *entities.RelatedItem) interface{} { return nil }
}

// compareValues orders numbers numerically and everything else case-insensitively.
// nil sorts first.
func compareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		}
		return 1
	}

	fa, aNum := number(a)
	fb, bNum := number(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b)))
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

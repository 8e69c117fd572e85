package related

import (
	"testing"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dated(relID, subjectID int64, date string) *entities.RelatedItem {
	d, err := entities.ParseEffectiveDate(date)
	if err != nil {
		panic(err)
	}
	return &entities.RelatedItem{RelationID: relID, SubjectID: subjectID, ItemID: relID * 10, EffectiveDate: d}
}

func TestCurrentOnly(t *testing.T) {
	now := 2021.0101000000
	items := []*entities.RelatedItem{
		dated(1, 1, "2020-01-01"),
		dated(2, 1, "2021-06-01"),
		dated(3, 1, "2019-05-05"),
		dated(4, 2, "2018"),
		dated(5, 2, "2018"),
		{RelationID: 6, SubjectID: 3},
	}

	kept := currentOnly(items, now)
	require.Len(t, kept, 2)
	assert.Equal(t, int64(1), kept[0].RelationID)
	assert.Equal(t, int64(5), kept[1].RelationID, "equal dates fall back to the higher relation id")
}

func TestCurrentOnly_WideRelationIDs(t *testing.T) {
	kept := currentOnly([]*entities.RelatedItem{
		dated(1000000000, 1, "2018"),
		dated(999999999, 1, "2018"),
	}, 2021.0101000000)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(1000000000), kept[0].RelationID)
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b interface{}
		want int
	}{
		{int64(2), int64(10), -1},
		{"2", "10", -1},
		{"apple", "Banana", -1},
		{"B", "a", 1},
		{nil, "a", -1},
		{"a", nil, 1},
		{nil, nil, 0},
		{"x", "X", 0},
		{true, false, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compareValues(tt.a, tt.b), "%v vs %v", tt.a, tt.b)
	}
}

func TestSortItems(t *testing.T) {
	entity := &entities.EntityDef{Name: "tags", Key: "tag_id", IdnoField: "idno"}
	link := &entities.LinkDef{Name: "items_x_tags", Key: "relation_id", RankField: "rank"}
	items := func() []*entities.RelatedItem {
		return []*entities.RelatedItem{
			{ItemID: 3, RelationID: 30, Label: "b", Idno: "T3", Rank: 1, Fields: map[string]interface{}{"idno": "T3"}},
			{ItemID: 1, RelationID: 10, Label: "B", Idno: "T1", Rank: 3, Fields: map[string]interface{}{"idno": "T1"}},
			{ItemID: 2, RelationID: 20, Label: "a", Idno: "T2", Rank: 2, Fields: map[string]interface{}{"idno": "T2"}},
		}
	}
	order := func(items []*entities.RelatedItem) []int64 {
		out := make([]int64, len(items))
		for i, it := range items {
			out[i] = it.ItemID
		}
		return out
	}

	tests := []struct {
		name string
		opts *Options
		want []int64
	}{
		{"label then idno", &Options{SortDirection: sortAsc}, []int64{2, 1, 3}},
		{"descending", &Options{SortDirection: sortDesc}, []int64{3, 1, 2}},
		{"field", &Options{Sort: []string{"tags.idno"}, SortDirection: sortAsc}, []int64{1, 2, 3}},
		{"link rank", &Options{Sort: []string{"items_x_tags.rank"}, SortDirection: sortAsc}, []int64{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := items()
			sortItems(got, tt.opts, entity, link)
			assert.Equal(t, tt.want, order(got))
		})
	}
}

func TestPlan_WhereField(t *testing.T) {
	target := &entities.EntityDef{Name: "tags", Key: "tag_id"}
	link := &entities.LinkDef{Name: "items_x_tags", Key: "relation_id", LeftTable: "items", LeftField: "item_id", RightTable: "tags", RightField: "tag_id"}
	p := manyToMany(repositories.DialectSQLite, target, link, "item_id", "tag_id", []int64{1}, entities.DirectionAny, false)

	tests := []struct {
		field   string
		want    string
		wantErr bool
	}{
		{"idno", `t."idno"`, false},
		{"tags.idno", `t."idno"`, false},
		{"items_x_tags.rank", `l."rank"`, false},
		{"collections.idno", "", true},
		{"idno = 1 OR 1", "", true},
	}
	for _, tt := range tests {
		got, err := p.whereField(tt.field)
		if tt.wantErr {
			assert.Error(t, err, tt.field)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

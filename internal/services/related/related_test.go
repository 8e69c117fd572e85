package related

import (
	"context"
	"testing"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/database"
	"github.com/asakaida/relata/internal/repositories/sqlstore"
	"github.com/asakaida/relata/internal/services/access"
	"github.com/asakaida/relata/internal/services/relationships"
	"github.com/asakaida/relata/internal/services/resolver"
	"github.com/asakaida/relata/internal/services/schemagraph"
	"github.com/asakaida/relata/internal/services/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store   *sqlstore.Store
	engine  *relationships.Engine
	service *Service
}

func newFixture(t *testing.T, cfg config.RelationshipsConfig, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	store := sqlstore.SetupTestDB(t)
	graph, err := schemagraph.FromDSL(database.CollectionsDatamodel)
	require.NoError(t, err)

	taxRepo := sqlstore.NewTaxonomyRepository(store)
	depicts, err := taxRepo.CreateRelationshipType(ctx, &entities.RelationshipType{
		TableName: "items_x_tags", TypeCode: "depicts", Typename: "depicts", TypenameReverse: "is depicted by",
	})
	require.NoError(t, err)
	for _, rt := range []*entities.RelationshipType{
		{TableName: "items_x_tags", TypeCode: "portrait", Typename: "portrait", ParentID: &depicts},
		{TableName: "items_x_tags", TypeCode: "mentions", Typename: "mentions"},
		{TableName: "items_x_items", TypeCode: "related", Typename: "related to", TypenameReverse: "related from"},
	} {
		_, err := taxRepo.CreateRelationshipType(ctx, rt)
		require.NoError(t, err)
	}
	subjectType, err := taxRepo.CreateEntityType(ctx, &entities.EntityType{TableName: "tags", Idno: "subject"})
	require.NoError(t, err)
	placeType, err := taxRepo.CreateEntityType(ctx, &entities.EntityType{TableName: "tags", Idno: "place"})
	require.NoError(t, err)

	sqlstore.MustExec(t, store, "INSERT INTO collections (collection_id, idno) VALUES (4, 'C4'), (5, 'C5')")
	sqlstore.MustExec(t, store, "INSERT INTO items (item_id, idno, idno_sort, type_id) VALUES (1, 'I1', 'I0001', 10), (2, 'I2', 'I0002', 11), (3, 'I3', 'I0003', 10)")
	sqlstore.MustExec(t, store, "INSERT INTO tags (tag_id, idno, type_id) VALUES (7, 'T7', ?), (8, 'T8', ?), (9, 'T9', ?)",
		subjectType, placeType, subjectType)

	entityRepo := sqlstore.NewEntityRepository(store)
	res := resolver.New(graph, nil, entityRepo, nil)
	types := taxonomy.NewService(taxRepo, nil)

	return &fixture{
		store: store,
		engine: relationships.NewEngine(res, relationships.Repositories{
			Links:      sqlstore.NewLinkRepository(store),
			Entities:   entityRepo,
			Attributes: sqlstore.NewAttributeRepository(store),
		}, types, cfg),
		service: NewService(res, sqlstore.NewQueryRepository(store), entityRepo, types, cfg,
			append([]Option{WithClock(func() time.Time { return testNow })}, opts...)...),
	}
}

func item(id int64) entities.Subject { return entities.Subject{Table: "items", ID: id} }

func (f *fixture) add(t *testing.T, subject entities.Subject, target, ref, relType, date string) int64 {
	t.Helper()
	result, err := f.engine.Add(context.Background(), subject, relationships.AddRequest{
		Target: target, TargetRef: ref, Type: relType, EffectiveDate: date,
	})
	require.NoError(t, err)
	return result.ID()
}

func (f *fixture) ids(t *testing.T, subject entities.Subject, target string, opts *Options) []int64 {
	t.Helper()
	result, err := f.service.GetRelated(context.Background(), subject, target, opts)
	require.NoError(t, err)
	return result.IDs
}

func TestGetRelated_ItemTagScenario(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	f.add(t, item(1), "tags", "8", "depicts", "")
	f.add(t, item(1), "tags", "7", "depicts", "")

	assert.Equal(t, []int64{7, 8}, f.ids(t, item(1), "tags", nil))
	assert.Equal(t, []int64{7, 8}, f.ids(t, item(1), "tags", nil), "order is stable across calls")

	_, err := f.engine.RemoveAll(ctx, item(1), relationships.RemoveAllRequest{Target: "tags"})
	require.NoError(t, err)

	result, err := f.service.GetRelated(ctx, item(1), "tags", nil)
	require.NoError(t, err)
	assert.Empty(t, result.IDs)
	assert.Empty(t, result.Items)
	assert.Equal(t, 0, result.Count)
}

func TestGetRelated_MoveUnion(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})

	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(1), "tags", "8", "depicts", "")
	f.add(t, item(2), "tags", "9", "depicts", "")

	_, err := f.engine.Move(context.Background(), item(1), "tags", 2)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{7, 8, 9}, f.ids(t, item(2), "tags", nil))
	assert.Empty(t, f.ids(t, item(1), "tags", nil))
}

func TestGetRelated_CurrentOnly(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})

	current := f.add(t, item(1), "tags", "7", "depicts", "2020-01-01")
	f.add(t, item(1), "tags", "8", "depicts", "2021-06-01")
	f.add(t, item(1), "tags", "9", "depicts", "2019-05-05")

	result, err := f.service.GetRelated(context.Background(), item(1), "tags", &Options{ShowCurrentOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, current, result.Items[0].RelationID)
	assert.Equal(t, int64(7), result.Items[0].ItemID)
	assert.Equal(t, "2020-01-01", result.Items[0].EffectiveDate.String())

	assert.Len(t, f.ids(t, item(1), "tags", nil), 3)
}

func TestGetRelated_Filters(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(1), "tags", "8", "portrait", "")
	f.add(t, item(1), "tags", "9", "mentions", "")
	sqlstore.MustExec(t, f.store, "UPDATE tags SET access = 1 WHERE tag_id = 9")

	noSubtypes := false
	tests := []struct {
		name string
		opts *Options
		want []int64
	}{
		{"no filter", nil, []int64{7, 8, 9}},
		{"relationship type with subtypes", &Options{RestrictToRelationshipTypes: []string{"depicts"}}, []int64{7, 8}},
		{"relationship type without subtypes", &Options{RestrictToRelationshipTypes: []string{"depicts"}, IncludeSubtypes: &noSubtypes}, []int64{7}},
		{"excluded relationship type", &Options{ExcludeRelationshipTypes: []string{"mentions"}}, []int64{7, 8}},
		{"entity type", &Options{RestrictToTypes: []string{"subject"}}, []int64{7, 9}},
		{"excluded entity type", &Options{ExcludeTypes: []string{"place"}}, []int64{7, 9}},
		{"unknown entity type matches nothing", &Options{RestrictToTypes: []string{"person"}}, []int64{}},
		{"where", &Options{Where: map[string]interface{}{"tags.idno": "T9"}}, []int64{9}},
		{"where on link", &Options{Where: map[string]interface{}{"items_x_tags.source_info": ""}}, []int64{7, 8, 9}},
		{"criteria", &Options{Criteria: []string{"t.tag_id > 7"}}, []int64{8, 9}},
		{"check access", &Options{CheckAccess: []int{1}}, []int64{9}},
		{"primary ids", &Options{PrimaryIDs: map[string][]int64{"tags": {8}}}, []int64{7, 9}},
		{"restrict to values", &Options{RestrictToValues: map[string][]string{"tags.idno": {"T7", "T8"}}}, []int64{7, 8}},
		{"row ids", &Options{RowIDs: []int64{2}}, []int64{}},
		{"sorted descending", &Options{SortDirection: "desc"}, []int64{9, 8, 7}},
		{"sorted by relationship type", &Options{Sort: []string{"items_x_tags.type_id"}}, []int64{7, 9, 8}},
		{"paginated", &Options{Start: 1, Limit: 1}, []int64{8}},
		{"start past the end", &Options{Start: 5}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ids(t, item(1), "tags", tt.opts))
		})
	}

	t.Run("invalid where field", func(t *testing.T) {
		_, err := f.service.GetRelated(context.Background(), item(1), "tags", &Options{Where: map[string]interface{}{"idno; DROP": 1}})
		assert.Error(t, err)
	})
	t.Run("where on unrelated table", func(t *testing.T) {
		_, err := f.service.GetRelated(context.Background(), item(1), "tags", &Options{Where: map[string]interface{}{"collections.idno": "C4"}})
		assert.Error(t, err)
	})
}

func TestGetRelated_Deleted(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(1), "tags", "8", "depicts", "")
	sqlstore.MustExec(t, f.store, "UPDATE tags SET deleted = 1 WHERE tag_id = 8")

	assert.Equal(t, []int64{7}, f.ids(t, item(1), "tags", nil))
	assert.Equal(t, []int64{7, 8}, f.ids(t, item(1), "tags", &Options{ShowDeleted: true}))
}

func TestGetRelated_SelfRelation(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ltor := f.add(t, item(1), "items", "2", "related", "")
	rtol := f.add(t, item(3), "items", "1", "related", "")

	result, err := f.service.GetRelated(context.Background(), item(1), "items", nil)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	byItem := map[int64]*entities.RelatedItem{}
	for _, it := range result.Items {
		byItem[it.ItemID] = it
	}
	require.Contains(t, byItem, int64(2))
	require.Contains(t, byItem, int64(3))

	assert.Equal(t, ltor, byItem[2].RelationID)
	assert.Equal(t, entities.DirectionLeftToRight, byItem[2].Direction)
	assert.Equal(t, "related to", byItem[2].RelationshipTypename)

	assert.Equal(t, rtol, byItem[3].RelationID)
	assert.Equal(t, entities.DirectionRightToLeft, byItem[3].Direction)
	assert.Equal(t, "related from", byItem[3].RelationshipTypename)
	assert.Equal(t, "related", byItem[3].RelationshipTypeCode)
}

func TestGetRelated_ManyToManyReverse(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(3), "tags", "7", "depicts", "")

	result, err := f.service.GetRelated(context.Background(), entities.Subject{Table: "tags", ID: 7}, "items", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, result.IDs, "sorted by idno_sort")
	for _, it := range result.Items {
		assert.Equal(t, "is depicted by", it.RelationshipTypename)
		assert.Equal(t, int64(7), it.SubjectID)
		assert.Equal(t, "items", it.Table)
	}
}

func TestGetRelated_ManyToOne(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	sqlstore.MustExec(t, f.store, "UPDATE items SET collection_id = 4 WHERE item_id IN (1, 2)")

	collection := entities.Subject{Table: "collections", ID: 4}
	assert.Equal(t, []int64{1, 2}, f.ids(t, collection, "items", nil))
	assert.Empty(t, f.ids(t, entities.Subject{Table: "collections", ID: 5}, "items", nil))

	result, err := f.service.GetRelated(context.Background(), item(1), "collections", nil)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(4), result.Items[0].ItemID)
	assert.Equal(t, int64(1), result.Items[0].SubjectID)
	assert.Equal(t, "C4", result.Items[0].Idno)
}

func TestGetRelated_LinkRows(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	r1 := f.add(t, item(1), "tags", "7", "depicts", "")
	r2 := f.add(t, item(1), "tags", "8", "mentions", "")
	f.add(t, item(2), "tags", "9", "depicts", "")

	result, err := f.service.GetRelated(context.Background(), item(1), "items_x_tags", &Options{Sort: []string{"relation_id"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{r1, r2}, result.IDs)
	assert.Equal(t, "items_x_tags", result.Items[0].Table)
	assert.Equal(t, "depicts", result.Items[0].RelationshipTypeCode)

	records, err := f.service.GetRelated(context.Background(), item(1), "items_x_tags", &Options{ReturnAs: ReturnEntities})
	require.NoError(t, err)
	require.Len(t, records.Records, 2)
	assert.Equal(t, "items_x_tags", records.Records[0].Table)
}

func TestGetRelated_Polymorphic(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	sqlstore.MustExec(t, f.store, "INSERT INTO notes (note_id, table_num, row_id, body) VALUES (1, 57, 1, 'a'), (2, 58, 1, 'b'), (3, 57, 1, 'c'), (4, 57, 2, 'd')")

	assert.Equal(t, []int64{1, 3}, f.ids(t, item(1), "notes", nil))
	assert.Equal(t, []int64{2}, f.ids(t, entities.Subject{Table: "tags", ID: 1}, "notes", nil))
}

func TestGetRelated_Labels(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{DefaultLocale: "en_US"})
	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(1), "tags", "8", "depicts", "")
	sqlstore.MustExec(t, f.store, `INSERT INTO tag_labels (tag_id, name, locale, is_preferred) VALUES
		(7, 'Seven', 'en_US', 1), (7, 'Sieben', 'de_DE', 1), (7, 'Number seven', 'en_US', 0),
		(8, 'Apple', 'en_US', 1)`)
	ctx := context.Background()

	result, err := f.service.GetRelated(ctx, item(1), "tags", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 7}, result.IDs, "sorted by label")
	assert.Equal(t, "Apple", result.Items[0].Label)
	assert.Equal(t, "Seven", result.Items[1].Label)
	assert.Equal(t, "en_US", result.Items[1].Locale)

	result, err = f.service.GetRelated(ctx, item(1), "tags", &Options{Locale: "de_DE", UseLocaleCodes: true})
	require.NoError(t, err)
	assert.Equal(t, "Sieben", result.Items[1].Label)
	assert.Equal(t, "de-DE", result.Items[1].Locale)

	scoped := entities.WithScope(ctx, entities.Scope{Locale: "de_DE"})
	result, err = f.service.GetRelated(scoped, item(1), "tags", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sieben", result.Items[1].Label)

	result, err = f.service.GetRelated(ctx, item(1), "tags", &Options{ReturnNonPreferredLabels: true, ReturnLabelsAsArray: true})
	require.NoError(t, err)
	assert.Len(t, result.Items[1].Labels, 3)

	result, err = f.service.GetRelated(ctx, item(1), "tags", &Options{DontReturnLabels: true})
	require.NoError(t, err)
	assert.Empty(t, result.Items[0].Label)
	assert.Equal(t, []int64{7, 8}, result.IDs, "sorted by idno without labels")
}

func TestGetRelated_Shapes(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(1), "tags", "8", "depicts", "")
	f.add(t, item(1), "tags", "9", "depicts", "")
	ctx := context.Background()

	get := func(opts *Options) *Result {
		result, err := f.service.GetRelated(ctx, item(1), "tags", opts)
		require.NoError(t, err)
		return result
	}

	count := get(&Options{ReturnAs: ReturnCount, Limit: 1})
	assert.Equal(t, 3, count.Count, "count ignores pagination")
	assert.Nil(t, count.Items)

	ids := get(&Options{ReturnAs: ReturnIDs})
	assert.Equal(t, []int64{7, 8, 9}, ids.IDs)
	assert.Nil(t, ids.Items)

	assert.Equal(t, int64(7), get(&Options{ReturnAs: ReturnFirstID}).FirstID)

	records := get(&Options{ReturnAs: ReturnEntities, Start: 1})
	require.Len(t, records.Records, 2)
	assert.Equal(t, int64(8), records.Records[0].ID)
	assert.Equal(t, "T8", records.Records[0].Get("idno"))

	first := get(&Options{ReturnAs: ReturnFirstEntity})
	require.NotNil(t, first.First)
	assert.Equal(t, int64(7), first.First.ID)

	search := get(&Options{ReturnAs: ReturnSearchResult})
	require.NotNil(t, search.Search)
	assert.Equal(t, 3, search.Search.Len())
	loaded, err := search.Search.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 3)

	fields := get(&Options{Fields: []string{"idno"}})
	assert.Equal(t, map[string]interface{}{"idno": "T7"}, fields.Items[0].Fields)
}

func TestGetRelated_Limit(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{RelatedDefaultLimit: 2})
	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(1), "tags", "8", "depicts", "")
	f.add(t, item(1), "tags", "9", "depicts", "")

	assert.Len(t, f.ids(t, item(1), "tags", nil), 2)
	assert.Len(t, f.ids(t, item(1), "tags", &Options{Limit: -1}), 3)
	assert.Len(t, f.ids(t, item(1), "tags", &Options{Limit: 3}), 3)
}

func TestGetRelated_ItemLevelAccess(t *testing.T) {
	policy, err := access.NewPolicy(config.DefaultAccessPolicy)
	require.NoError(t, err)

	f := newFixture(t, config.RelationshipsConfig{ItemLevelAccessChecking: true})
	acl := sqlstore.NewACLRepository(f.store)
	f.service.access = access.NewEvaluator(acl, policy, 0)

	f.add(t, item(1), "tags", "7", "depicts", "")
	f.add(t, item(1), "tags", "8", "depicts", "")
	ctx := context.Background()
	require.NoError(t, acl.Grant(ctx, 58, 7, 5, 0, 1))

	assert.Empty(t, f.ids(t, item(1), "tags", nil))

	result, err := f.service.GetRelated(entities.WithScope(ctx, entities.Scope{UserID: 5}), item(1), "tags", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, result.IDs)

	assert.Equal(t, []int64{7}, f.ids(t, item(1), "tags", &Options{UserID: 5}))
}

func TestGetRelated_Errors(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	_, err := f.service.GetRelated(ctx, entities.Subject{Table: "items"}, "tags", nil)
	assert.ErrorIs(t, err, entities.ErrSubjectNotLoaded)

	_, err = f.service.GetRelated(ctx, item(1), "bogus", nil)
	assert.ErrorIs(t, err, entities.ErrNoPath)
	var re *entities.RelationshipError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, OpGetRelated, re.Context)

	_, err = f.service.GetRelated(ctx, item(1), "tags", &Options{SortDirection: "sideways"})
	assert.Error(t, err)

	f.add(t, item(2), "tags", "7", "depicts", "")
	ids := f.ids(t, entities.Subject{Table: "items"}, "tags", &Options{RowIDs: []int64{1, 2}})
	assert.Equal(t, []int64{7}, ids, "row ids stand in for an unloaded subject")
}

package relationships

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/database"
	"github.com/asakaida/relata/internal/repositories/sqlstore"
	"github.com/asakaida/relata/internal/services/access"
	"github.com/asakaida/relata/internal/services/resolver"
	"github.com/asakaida/relata/internal/services/schemagraph"
	"github.com/asakaida/relata/internal/services/search"
	"github.com/asakaida/relata/internal/services/taxonomy"
	"github.com/asakaida/relata/pkg/cache/memorycache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *sqlstore.Store
	engine  *Engine
	indexer *search.MemoryIndexer
	errors  *entities.ErrorList
	repos   Repositories

	depicts, portrait, mentions, related int64 // relationship types
	subjectType, placeType                int64 // tag entity types
}

func newFixture(t *testing.T, cfg config.RelationshipsConfig, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	store := sqlstore.SetupTestDB(t)
	graph, err := schemagraph.FromDSL(database.CollectionsDatamodel)
	require.NoError(t, err)

	taxRepo := sqlstore.NewTaxonomyRepository(store)
	f := &fixture{
		store:   store,
		indexer: &search.MemoryIndexer{},
		errors:  &entities.ErrorList{},
		repos: Repositories{
			Links:      sqlstore.NewLinkRepository(store),
			Entities:   sqlstore.NewEntityRepository(store),
			Attributes: sqlstore.NewAttributeRepository(store),
		},
	}

	createType := func(table, code string, parent *int64) int64 {
		id, err := taxRepo.CreateRelationshipType(ctx, &entities.RelationshipType{TableName: table, TypeCode: code, Typename: code, ParentID: parent})
		require.NoError(t, err)
		return id
	}
	f.depicts = createType("items_x_tags", "depicts", nil)
	f.portrait = createType("items_x_tags", "portrait", &f.depicts)
	f.mentions = createType("items_x_tags", "mentions", nil)
	f.related = createType("items_x_items", "related", nil)

	f.subjectType, err = taxRepo.CreateEntityType(ctx, &entities.EntityType{TableName: "tags", Idno: "subject"})
	require.NoError(t, err)
	f.placeType, err = taxRepo.CreateEntityType(ctx, &entities.EntityType{TableName: "tags", Idno: "place"})
	require.NoError(t, err)

	sqlstore.MustExec(t, store, "INSERT INTO collections (collection_id, idno) VALUES (4, 'C4'), (5, 'C5')")
	sqlstore.MustExec(t, store, "INSERT INTO items (item_id, idno, type_id) VALUES (1, 'I1', 10), (2, 'I2', 11), (3, 'I3', 10)")
	sqlstore.MustExec(t, store, "INSERT INTO tags (tag_id, idno, type_id) VALUES (7, 'T7', ?), (8, 'T8', ?), (9, 'T9', ?)",
		f.subjectType, f.placeType, f.subjectType)

	pathCache, err := memorycache.New(&memorycache.Config{MaxEntries: 100})
	require.NoError(t, err)
	res := resolver.New(graph, pathCache, f.repos.Entities, nil)
	types := taxonomy.NewService(taxRepo, nil)
	opts = append([]Option{WithIndexer(f.indexer), WithTransactor(store), WithErrorList(f.errors)}, opts...)
	f.engine = NewEngine(res, f.repos, types, cfg, opts...)
	return f
}

func item(id int64) entities.Subject { return entities.Subject{Table: "items", ID: id} }

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	rows, err := f.store.Select(context.Background(), "SELECT COUNT(*) AS n FROM "+table)
	require.NoError(t, err)
	return rows[0].Int64("n")
}

func TestAdd_ThenExists(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  AddRequest
	}{
		{"by id and code", AddRequest{Target: "tags", TargetRef: "7", Type: "depicts"}},
		{"by table number and idno", AddRequest{Target: "58", TargetRef: "T8", Type: "mentions"}},
		{"with effective date", AddRequest{Target: "tags", TargetRef: "9", Type: "depicts", EffectiveDate: "2020-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.engine.Add(ctx, item(1), tt.req)
			require.NoError(t, err)
			require.NotNil(t, result.Relation)
			assert.Equal(t, entities.PathManyToMany, result.Kind)
			assert.Equal(t, int64(1), result.Relation.LeftID)

			ids, err := f.engine.Exists(ctx, item(1), ExistsRequest{
				Target: tt.req.Target, TargetRef: tt.req.TargetRef, Type: tt.req.Type, EffectiveDate: tt.req.EffectiveDate,
			})
			require.NoError(t, err)
			assert.Contains(t, ids, result.ID())
		})
	}

	// the reverse subject sees the same row
	ids, err := f.engine.Exists(ctx, entities.Subject{Table: "tags", ID: 7}, ExistsRequest{Target: "items", TargetRef: "1"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	ids, err = f.engine.Exists(ctx, item(2), ExistsRequest{Target: "tags", TargetRef: "7"})
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestAdd_Duplicates(t *testing.T) {
	ctx := context.Background()
	req := AddRequest{Target: "tags", TargetRef: "7", Type: "depicts", EffectiveDate: "2020"}

	t.Run("rejected without allow duplicates", func(t *testing.T) {
		f := newFixture(t, config.RelationshipsConfig{})
		_, err := f.engine.Add(ctx, item(1), req)
		require.NoError(t, err)

		_, err = f.engine.Add(ctx, item(1), req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, entities.ErrDuplicateRelationship))
		assert.Equal(t, int64(1), f.count(t, "items_x_tags"))
		assert.Equal(t, 0, f.errors.Count(), "duplicates are posted only on request")

		dupReq := req
		dupReq.SetErrorOnDuplicate = true
		_, err = f.engine.Add(ctx, item(1), dupReq)
		require.Error(t, err)
		require.Equal(t, 1, f.errors.Count())
		assert.Equal(t, entities.CodeDuplicate, f.errors.Errors()[0].Code)
	})

	t.Run("different date is not a duplicate", func(t *testing.T) {
		f := newFixture(t, config.RelationshipsConfig{})
		_, err := f.engine.Add(ctx, item(1), req)
		require.NoError(t, err)
		other := req
		other.EffectiveDate = "2021"
		_, err = f.engine.Add(ctx, item(1), other)
		require.NoError(t, err)
		assert.Equal(t, int64(2), f.count(t, "items_x_tags"))
	})

	t.Run("allowed by request", func(t *testing.T) {
		f := newFixture(t, config.RelationshipsConfig{})
		_, err := f.engine.Add(ctx, item(1), req)
		require.NoError(t, err)
		allow := req
		allow.AllowDuplicates = true
		_, err = f.engine.Add(ctx, item(1), allow)
		require.NoError(t, err)
		assert.Equal(t, int64(2), f.count(t, "items_x_tags"))
	})

	t.Run("allowed by configuration", func(t *testing.T) {
		f := newFixture(t, config.RelationshipsConfig{AllowDuplicates: true})
		for i := 0; i < 2; i++ {
			_, err := f.engine.Add(ctx, item(1), req)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(2), f.count(t, "items_x_tags"))
	})
}

func TestAdd_Errors(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	t.Run("subject not loaded", func(t *testing.T) {
		_, err := f.engine.Add(ctx, entities.Subject{Table: "items"}, AddRequest{Target: "tags", TargetRef: "7"})
		assert.ErrorIs(t, err, entities.ErrSubjectNotLoaded)
	})

	t.Run("unknown type code", func(t *testing.T) {
		_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "7", Type: "nope"})
		var re *entities.RelationshipError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, entities.KindInvalidType, re.Kind)
		assert.Equal(t, entities.CodeInvalidType, re.Code)
		assert.Equal(t, OpAdd, re.Context)
	})

	t.Run("invalid table", func(t *testing.T) {
		_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "people", TargetRef: "7"})
		var re *entities.RelationshipError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, entities.CodeInvalidTable, re.Code)
		assert.True(t, errors.Is(err, entities.ErrNoPath))
	})

	t.Run("link rows are query only", func(t *testing.T) {
		_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "items_x_tags", TargetRef: "1"})
		assert.True(t, errors.Is(err, entities.ErrNoPath))
	})

	t.Run("unknown idno", func(t *testing.T) {
		_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "missing"})
		assert.ErrorIs(t, err, entities.ErrTargetNotFound)
	})

	t.Run("bad effective date", func(t *testing.T) {
		_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "7", EffectiveDate: "someday"})
		assert.True(t, errors.Is(err, entities.ErrWrite))
	})

	assert.Equal(t, 4, f.errors.Count(), "relationship errors are posted, sentinels are not")
}

func TestAdd_InterstitialValues(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	result, err := f.engine.Add(ctx, item(1), AddRequest{
		Target:    "tags",
		TargetRef: "7",
		Type:      "depicts",
		Values: map[string]interface{}{
			"effective_date": "2019",
			"source_info":    "registrar",
			"remarks":        "verified",
		},
	})
	require.NoError(t, err)

	rel, err := f.repos.Links.Get(ctx, f.engine.resolver.Graph().Link("items_x_tags"), result.ID())
	require.NoError(t, err)
	assert.Equal(t, "registrar", rel.SourceInfo)
	assert.Equal(t, "2019", rel.EffectiveDate.String())

	values, err := f.repos.Attributes.ListForRow(ctx, 101, result.ID())
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "remarks", values[0].ElementCode)
	assert.Equal(t, "verified", values[0].Value)
}

func TestSelfRelation_Direction(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	result, err := f.engine.Add(ctx, item(1), AddRequest{Target: "items", TargetRef: "2", Type: "related", Direction: entities.DirectionRightToLeft})
	require.NoError(t, err)
	assert.Equal(t, entities.PathSelfRelation, result.Kind)
	assert.Equal(t, int64(2), result.Relation.LeftID)
	assert.Equal(t, int64(1), result.Relation.RightID)

	ids, err := f.engine.Exists(ctx, item(1), ExistsRequest{Target: "items", TargetRef: "2", Type: "related"})
	require.NoError(t, err)
	assert.Equal(t, []int64{result.ID()}, ids)

	ids, err = f.engine.Exists(ctx, item(2), ExistsRequest{Target: "items", TargetRef: "1"})
	require.NoError(t, err)
	assert.Equal(t, []int64{result.ID()}, ids)

	// the same pair in the other orientation is a duplicate
	_, err = f.engine.Add(ctx, item(1), AddRequest{Target: "items", TargetRef: "2", Type: "related"})
	assert.True(t, errors.Is(err, entities.ErrDuplicateRelationship))
}

func TestEdit(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	first, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "7", Type: "depicts"})
	require.NoError(t, err)
	_, err = f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "8", Type: "depicts"})
	require.NoError(t, err)

	edited, err := f.engine.Edit(ctx, item(1), first.ID(), AddRequest{Target: "tags", TargetRef: "9", Type: "mentions", Rank: 50})
	require.NoError(t, err)
	assert.Equal(t, first.ID(), edited.ID())
	assert.Equal(t, int64(9), edited.Relation.RightID)
	assert.Equal(t, f.mentions, edited.Relation.TypeID)
	assert.Equal(t, int64(50), edited.Relation.Rank)

	// editing a row into its own state is not a duplicate of itself
	_, err = f.engine.Edit(ctx, item(1), first.ID(), AddRequest{Target: "tags", TargetRef: "9", Type: "mentions"})
	require.NoError(t, err)

	_, err = f.engine.Edit(ctx, item(1), first.ID(), AddRequest{Target: "tags", TargetRef: "8", Type: "depicts"})
	assert.True(t, errors.Is(err, entities.ErrDuplicateRelationship))

	_, err = f.engine.Edit(ctx, item(1), 999, AddRequest{Target: "tags", TargetRef: "7"})
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	_, err = f.engine.Edit(ctx, item(1), first.ID(), AddRequest{Target: "tags", TargetRef: "7", Type: "bogus"})
	assert.True(t, errors.Is(err, entities.ErrInvalidType))
}

func TestEdit_KeepsUnsuppliedColumns(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()
	link := f.engine.resolver.Graph().Link("items_x_tags")

	added, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "7", Type: "depicts", EffectiveDate: "2020", SourceInfo: "catalogue"})
	require.NoError(t, err)

	_, err = f.engine.Edit(ctx, item(1), added.ID(), AddRequest{Target: "tags", TargetRef: "7", Type: "depicts", Rank: 5})
	require.NoError(t, err)

	rel, err := f.repos.Links.Get(ctx, link, added.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(5), rel.Rank)
	assert.Equal(t, "catalogue", rel.SourceInfo)
	require.NotNil(t, rel.EffectiveDate)
	assert.Equal(t, "2020", rel.EffectiveDate.String())

	// the kept date takes part in the duplicate check
	_, err = f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "8", Type: "depicts", EffectiveDate: "2020"})
	require.NoError(t, err)
	_, err = f.engine.Edit(ctx, item(1), added.ID(), AddRequest{Target: "tags", TargetRef: "8", Type: "depicts"})
	assert.True(t, errors.Is(err, entities.ErrDuplicateRelationship))

	_, err = f.engine.Edit(ctx, item(1), added.ID(), AddRequest{Target: "tags", TargetRef: "7", Type: "depicts", EffectiveDate: "2021", SourceInfo: "register"})
	require.NoError(t, err)
	rel, err = f.repos.Links.Get(ctx, link, added.ID())
	require.NoError(t, err)
	assert.Equal(t, "register", rel.SourceInfo)
	assert.Equal(t, "2021", rel.EffectiveDate.String())
}

func TestRemoveAndEdit_OtherSubjectsRows(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	tagged, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "7"})
	require.NoError(t, err)
	related, err := f.engine.Add(ctx, item(1), AddRequest{Target: "items", TargetRef: "2", Type: "related"})
	require.NoError(t, err)

	err = f.engine.Remove(ctx, item(2), "tags", tagged.ID())
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	_, err = f.engine.Edit(ctx, item(2), tagged.ID(), AddRequest{Target: "tags", TargetRef: "8"})
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	assert.Equal(t, int64(1), f.count(t, "items_x_tags"))

	// the reverse side of a many-to-many row is still its owner
	require.NoError(t, f.engine.Remove(ctx, entities.Subject{Table: "tags", ID: 7}, "items", tagged.ID()))
	assert.Equal(t, int64(0), f.count(t, "items_x_tags"))

	err = f.engine.Remove(ctx, item(3), "items", related.ID())
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	// either side owns a self relation
	require.NoError(t, f.engine.Remove(ctx, item(2), "items", related.ID()))
	assert.Equal(t, int64(0), f.count(t, "items_x_items"))
}

func TestRemove(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	result, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "7", Values: map[string]interface{}{"remarks": "x"}})
	require.NoError(t, err)

	require.NoError(t, f.engine.Remove(ctx, item(1), "tags", result.ID()))
	assert.Equal(t, int64(0), f.count(t, "items_x_tags"))
	assert.Equal(t, int64(0), f.count(t, "attribute_values"))

	err = f.engine.Remove(ctx, item(1), "tags", result.ID())
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	err = f.engine.Remove(ctx, entities.Subject{Table: "items"}, "tags", 1)
	assert.ErrorIs(t, err, entities.ErrSubjectNotLoaded)
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture) {
		for _, req := range []AddRequest{
			{Target: "tags", TargetRef: "7", Type: "depicts"},
			{Target: "tags", TargetRef: "8", Type: "portrait"},
			{Target: "tags", TargetRef: "9", Type: "mentions"},
		} {
			_, err := f.engine.Add(ctx, item(1), req)
			require.NoError(t, err)
		}
		_, err := f.engine.Add(ctx, item(2), AddRequest{Target: "tags", TargetRef: "7", Type: "depicts"})
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		req     RemoveAllRequest
		removed int
	}{
		{"everything", RemoveAllRequest{Target: "tags"}, 3},
		{"type with subtypes", RemoveAllRequest{Target: "tags", Types: []string{"depicts"}}, 2},
		{"unknown type removes nothing", RemoveAllRequest{Target: "tags", Types: []string{"unknown"}}, 0},
		{"target entity type", RemoveAllRequest{Target: "tags", RestrictToTypes: []string{"place"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.RelationshipsConfig{})
			seed(t, f)

			results, err := f.engine.RemoveAll(ctx, item(1), tt.req)
			require.NoError(t, err)
			assert.Len(t, results, tt.removed)
			for _, r := range results {
				assert.True(t, r.OK())
			}
			assert.Equal(t, int64(4-tt.removed), f.count(t, "items_x_tags"))
		})
	}
}

func TestRemoveAll_SelfRelation(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "items", TargetRef: "2"})
	require.NoError(t, err)
	_, err = f.engine.Add(ctx, item(3), AddRequest{Target: "items", TargetRef: "1"})
	require.NoError(t, err)
	_, err = f.engine.Add(ctx, item(2), AddRequest{Target: "items", TargetRef: "3"})
	require.NoError(t, err)

	results, err := f.engine.RemoveAll(ctx, item(1), RemoveAllRequest{Target: "items"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int64(1), f.count(t, "items_x_items"))
}

func TestManyToOne(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()
	items := f.engine.resolver.Graph().Entity("items")
	collection := func(id int64) int64 {
		v, err := f.repos.Entities.GetForeignKey(ctx, items, id, "collection_id")
		require.NoError(t, err)
		return v
	}

	t.Run("add from the many side", func(t *testing.T) {
		result, err := f.engine.Add(ctx, item(1), AddRequest{Target: "collections", TargetRef: "C4"})
		require.NoError(t, err)
		assert.Equal(t, entities.PathManyToOne, result.Kind)
		assert.Equal(t, &entities.EntityRef{Table: "items", ID: 1}, result.Entity)
		assert.Equal(t, int64(4), collection(1))
	})

	t.Run("add from the one side", func(t *testing.T) {
		result, err := f.engine.Add(ctx, entities.Subject{Table: "collections", ID: 4}, AddRequest{Target: "items", TargetRef: "2"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.ID())
		assert.Equal(t, int64(4), collection(2))
	})

	t.Run("exists", func(t *testing.T) {
		ids, err := f.engine.Exists(ctx, item(1), ExistsRequest{Target: "collections", TargetRef: "4"})
		require.NoError(t, err)
		assert.Equal(t, []int64{4}, ids)

		ids, err = f.engine.Exists(ctx, entities.Subject{Table: "collections", ID: 5}, ExistsRequest{Target: "items", TargetRef: "1"})
		require.NoError(t, err)
		assert.Empty(t, ids)

		_, err = f.engine.Add(ctx, item(1), AddRequest{Target: "collections", TargetRef: "4"})
		assert.True(t, errors.Is(err, entities.ErrDuplicateRelationship))
	})

	t.Run("has relationships", func(t *testing.T) {
		counts, err := f.engine.HasRelationships(ctx, entities.Subject{Table: "collections", ID: 4})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"items": 2}, counts)
	})

	t.Run("move references", func(t *testing.T) {
		n, err := f.engine.Move(ctx, entities.Subject{Table: "collections", ID: 4}, "items", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.Equal(t, int64(5), collection(1))
		assert.Equal(t, int64(5), collection(2))

		n, err = f.engine.Move(ctx, item(1), "collections", 4)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("copy", func(t *testing.T) {
		n, err := f.engine.Copy(ctx, item(1), "collections", 3, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, int64(5), collection(3))

		_, err = f.engine.Copy(ctx, entities.Subject{Table: "collections", ID: 5}, "items", 4, false)
		assert.True(t, errors.Is(err, entities.ErrNoPath))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, f.engine.Remove(ctx, entities.Subject{Table: "collections", ID: 5}, "items", 2))
		assert.Zero(t, collection(2))

		err := f.engine.Remove(ctx, entities.Subject{Table: "collections", ID: 4}, "items", 1)
		assert.True(t, errors.Is(err, entities.ErrNotFound))

		require.NoError(t, f.engine.Remove(ctx, item(1), "collections", 0))
		assert.Zero(t, collection(1))
	})
}

func TestMove(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()
	link := f.engine.resolver.Graph().Link("items_x_tags")

	var moved []int64
	for _, ref := range []string{"7", "8"} {
		result, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: ref, Type: "depicts"})
		require.NoError(t, err)
		result.Relation.IsPrimary = true
		require.NoError(t, f.repos.Links.Update(ctx, link, result.Relation))
		moved = append(moved, result.ID())
	}
	existing, err := f.engine.Add(ctx, item(2), AddRequest{Target: "tags", TargetRef: "9", Type: "depicts"})
	require.NoError(t, err)
	existing.Relation.IsPrimary = true
	require.NoError(t, f.repos.Links.Update(ctx, link, existing.Relation))

	n, err := f.engine.Move(ctx, item(1), "tags", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := f.repos.Links.Find(ctx, link, nil)
	require.NoError(t, err)
	primaries := 0
	for _, r := range rows {
		assert.Equal(t, int64(2), r.LeftID)
		if r.IsPrimary {
			primaries++
			assert.Equal(t, moved[0], r.ID, "the first primary row in id order is kept")
		}
	}
	assert.Equal(t, 1, primaries)

	entries := f.indexer.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 101, e.TableNum)
		assert.Equal(t, []string{"item_id"}, e.Exclusions)
	}

	ids, err := f.engine.Exists(ctx, item(1), ExistsRequest{Target: "tags", TargetRef: "7"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMove_SelfRelation(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "items", TargetRef: "2"})
	require.NoError(t, err)
	_, err = f.engine.Add(ctx, item(2), AddRequest{Target: "items", TargetRef: "1", AllowDuplicates: true})
	require.NoError(t, err)

	n, err := f.engine.Move(ctx, item(1), "items", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := f.engine.Exists(ctx, item(3), ExistsRequest{Target: "items", TargetRef: "2"})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestMove_AmbientTransaction(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	_, err := f.engine.Add(ctx, item(1), AddRequest{Target: "tags", TargetRef: "7"})
	require.NoError(t, err)

	tx, err := f.store.BeginTx(ctx, nil)
	require.NoError(t, err)
	subject := entities.Subject{Table: "items", ID: 1, Tx: tx}

	n, err := f.engine.Move(ctx, subject, "tags", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Rollback())

	ids, err := f.engine.Exists(ctx, item(1), ExistsRequest{Target: "tags", TargetRef: "7"})
	require.NoError(t, err)
	assert.Len(t, ids, 1, "the caller's rollback undoes the move")
}

func TestCopy(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	ctx := context.Background()

	for _, ref := range []string{"7", "8"} {
		_, err := f.engine.Add(ctx, item(1), AddRequest{
			Target: "tags", TargetRef: ref, Type: "depicts", EffectiveDate: "2020", SourceInfo: "inventory",
			Values: map[string]interface{}{"remarks": "tag " + ref},
		})
		require.NoError(t, err)
	}

	n, err := f.engine.Copy(ctx, item(1), "tags", 3, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(4), f.count(t, "items_x_tags"))
	assert.Equal(t, int64(4), f.count(t, "attribute_values"))

	link := f.engine.resolver.Graph().Link("items_x_tags")
	from, err := f.repos.Links.Find(ctx, link, nil)
	require.NoError(t, err)
	var original, copied []*entities.Relation
	for _, r := range from {
		if r.LeftID == 1 {
			original = append(original, r)
		} else {
			copied = append(copied, r)
		}
	}
	require.Len(t, original, 2)
	require.Len(t, copied, 2)
	for i := range original {
		assert.Equal(t, int64(3), copied[i].LeftID)
		assert.Equal(t, original[i].RightID, copied[i].RightID)
		assert.Equal(t, original[i].TypeID, copied[i].TypeID)
		assert.Equal(t, original[i].Rank, copied[i].Rank)
		assert.True(t, original[i].EffectiveDate.Equal(copied[i].EffectiveDate))
		assert.Equal(t, original[i].SourceInfo, copied[i].SourceInfo)

		values, err := f.repos.Attributes.ListForRow(ctx, 101, copied[i].ID)
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, "tag "+strconv.FormatInt(original[i].RightID, 10), values[0].Value)
	}
	assert.Len(t, f.indexer.Entries(), 2)
}

func TestPermission(t *testing.T) {
	ctx := context.Background()
	policy, err := access.NewPolicy(config.DefaultAccessPolicy)
	require.NoError(t, err)

	cfg := config.RelationshipsConfig{ItemLevelAccessChecking: true, DefaultItemAccessLevel: 1}
	f := newFixture(t, cfg)
	acl := sqlstore.NewACLRepository(f.store)
	require.NoError(t, acl.Grant(ctx, 57, 1, 5, 0, 2))
	WithAccess(access.NewEvaluator(acl, policy, cfg.DefaultItemAccessLevel))(f.engine)

	editor := entities.WithScope(ctx, entities.Scope{UserID: 5})
	_, err = f.engine.Add(editor, item(1), AddRequest{Target: "tags", TargetRef: "7"})
	require.NoError(t, err)

	reader := entities.WithScope(ctx, entities.Scope{UserID: 6})
	_, err = f.engine.Add(reader, item(1), AddRequest{Target: "tags", TargetRef: "8"})
	var re *entities.RelationshipError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, entities.CodePermission, re.Code)

	// reads are not edit-checked
	ids, err := f.engine.Exists(reader, item(1), ExistsRequest{Target: "tags", TargetRef: "7"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestRelationshipTableName(t *testing.T) {
	f := newFixture(t, config.RelationshipsConfig{})
	name, err := f.engine.RelationshipTableName(context.Background(), "tags", "items")
	require.NoError(t, err)
	assert.Equal(t, "items_x_tags", name)
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3, 5}, union([]int64{1, 3, 5}, []int64{2, 3}))
	assert.Empty(t, union(nil, nil))
}

// Package related answers "what is related to this row" queries along the
// path the resolver finds between two tables.
package related

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/metrics"
	"github.com/asakaida/relata/internal/repositories"
	"github.com/asakaida/relata/internal/services/access"
	"github.com/asakaida/relata/internal/services/resolver"
	"github.com/asakaida/relata/internal/services/taxonomy"
	"go.uber.org/zap"
)

// OpGetRelated names the query in error contexts, logs and metrics
const OpGetRelated = "GetRelated"

const defaultLimit = 1000

// Service is the related-items query engine
type Service struct {
	resolver   *resolver.Resolver
	query      repositories.QueryRepository
	entityRepo repositories.EntityRepository
	types      *taxonomy.Service
	cfg        config.RelationshipsConfig
	access     *access.Evaluator
	logger     *zap.Logger
	instr      *metrics.Instrumenter
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAccess filters related rows through the evaluator when item-level access checking is on
func WithAccess(evaluator *access.Evaluator) Option {
	return func(s *Service) { s.access = evaluator }
}

// WithInstrumenter records every query
func WithInstrumenter(instr *metrics.Instrumenter) Option {
	return func(s *Service) { s.instr = instr }
}

// WithClock sets the clock current-only filtering compares effective dates against
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a query engine
func NewService(res *resolver.Resolver, query repositories.QueryRepository, entityRepo repositories.EntityRepository, types *taxonomy.Service, cfg config.RelationshipsConfig, opts ...Option) *Service {
	s := &Service{
		resolver:   res,
		query:      query,
		entityRepo: entityRepo,
		types:      types,
		cfg:        cfg,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// GetRelated returns the rows of target related to subject. opts may be nil.
func (s *Service) GetRelated(ctx context.Context, subject entities.Subject, target string, opts *Options) (result *Result, err error) {
	start := time.Now()
	defer func() { s.instr.Observe(OpGetRelated, start, err) }()

	if opts == nil {
		opts = &Options{}
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	ids := opts.RowIDs
	if len(ids) == 0 {
		if !subject.Loaded() {
			return nil, entities.ErrSubjectNotLoaded
		}
		ids = []int64{subject.ID}
	}
	ctx = repositories.WithTx(ctx, subject.Tx)

	res, err := s.resolver.Resolve(ctx, subject.Table, target)
	if err != nil {
		var re *entities.RelationshipError
		if errors.As(err, &re) {
			return nil, &entities.RelationshipError{Kind: re.Kind, Code: re.Code, Message: re.Message, Context: OpGetRelated}
		}
		return nil, err
	}

	plans, err := s.plans(res, ids)
	if err != nil {
		return nil, err
	}

	var items []*entities.RelatedItem
	seen := make(map[[2]int64]bool)
	for _, p := range plans {
		if err := s.filter(ctx, p, opts); err != nil {
			return nil, err
		}
		found, err := s.run(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, it := range found {
			key := [2]int64{it.RelationID, it.SubjectID}
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, it)
		}
	}

	items = excludePrimary(items, opts.PrimaryIDs)
	items = restrictToValues(items, opts.RestrictToValues)

	if items, err = s.checkAccess(ctx, items, opts); err != nil {
		return nil, err
	}
	if opts.ShowCurrentOnly {
		items = currentOnly(items, entities.HistoricFromTime(s.now()))
	}
	if err := s.nameTypes(ctx, plans, items); err != nil {
		return nil, err
	}
	if !opts.DontReturnLabels {
		if err := s.loadLabels(ctx, res.TargetTable, items, opts); err != nil {
			return nil, err
		}
	}

	sortItems(items, opts, s.resolver.Graph().Entity(res.TargetTable), res.Link())
	count := len(items)
	items = s.paginate(items, opts)
	limitFields(items, opts.Fields)

	s.logger.Debug("related items",
		zap.String("subject", subject.Table),
		zap.String("target", res.TargetTable),
		zap.Int("count", count))

	return s.shape(ctx, res, items, count, opts)
}

// plans returns the query branches for the resolved path
func (s *Service) plans(res *entities.Resolution, ids []int64) ([]*plan, error) {
	graph := s.resolver.Graph()
	d := s.query.Dialect()

	switch p := res.Path.(type) {
	case *entities.SelfRelationPath:
		target := graph.Entity(p.Table)
		l := p.Link
		return []*plan{
			manyToMany(d, target, l, l.LeftField, l.RightField, ids, entities.DirectionLeftToRight, false),
			manyToMany(d, target, l, l.RightField, l.LeftField, ids, entities.DirectionRightToLeft, true),
		}, nil

	case *entities.ManyToManyPath:
		target := graph.Entity(p.Target)
		return []*plan{
			manyToMany(d, target, p.Link, p.SubjectField(), p.TargetField(), ids, entities.DirectionAny, !p.SubjectIsLeft()),
		}, nil

	case *entities.ManyToOnePath:
		one, many := graph.Entity(p.OneTable), graph.Entity(p.ManyTable)
		if p.SubjectIsOne() {
			return []*plan{manyToOneFromOne(d, many, p.FKField, ids)}, nil
		}
		return []*plan{manyToOneFromMany(d, one, many, p.FKField, ids)}, nil

	case *entities.LinkRowsPath:
		l := p.Link
		if l.IsSelf() {
			return []*plan{
				linkRows(d, l, l.LeftField, ids, entities.DirectionLeftToRight),
				linkRows(d, l, l.RightField, ids, entities.DirectionRightToLeft),
			}, nil
		}
		own, _, _ := l.Sides(p.Subject)
		return []*plan{linkRows(d, l, own, ids, entities.DirectionAny)}, nil

	case *entities.PolymorphicPath:
		num, ok := graph.TableNumber(p.Subject)
		if !ok {
			return nil, entities.NewNoPathError(OpGetRelated, p.Subject, p.Target)
		}
		return []*plan{polymorphic(d, graph.Entity(p.Holder), num, ids)}, nil
	}
	return nil, entities.NewNoPathError(OpGetRelated, res.SubjectTable, res.TargetTable)
}

// filter adds the option-driven conditions to a plan
func (s *Service) filter(ctx context.Context, p *plan, opts *Options) error {
	st := p.stmt

	if t := p.target; t != nil {
		if t.DeletedField != "" && !opts.ShowDeleted {
			st.and(st.col(aliasTarget, t.DeletedField) + " = 0")
		}
		if t.AccessField != "" && len(opts.CheckAccess) > 0 {
			levels := make([]int64, len(opts.CheckAccess))
			for i, v := range opts.CheckAccess {
				levels[i] = int64(v)
			}
			st.in(aliasTarget, t.AccessField, levels)
		}
		if t.TypeField != "" && s.types != nil {
			if len(opts.RestrictToTypes) > 0 {
				ids, err := s.types.ExpandEntityTypes(ctx, t.Name, opts.RestrictToTypes, opts.includeSubtypes())
				if err != nil {
					return fmt.Errorf("failed to expand %s types: %w", t.Name, err)
				}
				st.in(aliasTarget, t.TypeField, ids)
			}
			if len(opts.ExcludeTypes) > 0 {
				ids, err := s.types.ExpandEntityTypes(ctx, t.Name, opts.ExcludeTypes, opts.includeSubtypes())
				if err != nil {
					return fmt.Errorf("failed to expand %s types: %w", t.Name, err)
				}
				st.notIn(aliasTarget, t.TypeField, ids)
			}
		}
	}

	if l := p.link; l != nil && l.HasType() && s.types != nil {
		if len(opts.RestrictToRelationshipTypes) > 0 {
			ids, err := s.types.ExpandRelationshipTypes(ctx, l.Name, opts.RestrictToRelationshipTypes, opts.includeSubtypes())
			if err != nil {
				return fmt.Errorf("failed to expand %s relationship types: %w", l.Name, err)
			}
			st.in(p.linkAlias, l.TypeField, ids)
		}
		if len(opts.ExcludeRelationshipTypes) > 0 {
			ids, err := s.types.ExpandRelationshipTypes(ctx, l.Name, opts.ExcludeRelationshipTypes, opts.includeSubtypes())
			if err != nil {
				return fmt.Errorf("failed to expand %s relationship types: %w", l.Name, err)
			}
			st.notIn(p.linkAlias, l.TypeField, ids)
		}
	}

	fields := make([]string, 0, len(opts.Where))
	for f := range opts.Where {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		col, err := p.whereField(f)
		if err != nil {
			return err
		}
		if v := opts.Where[f]; v == nil {
			st.and(col + " IS NULL")
		} else {
			st.and(col+" = ?", v)
		}
	}

	for _, c := range opts.Criteria {
		if c = strings.TrimSpace(c); c != "" {
			st.and("(" + c + ")")
		}
	}
	return nil
}

// run executes a plan and converts its rows
func (s *Service) run(ctx context.Context, p *plan) ([]*entities.RelatedItem, error) {
	rows, err := s.query.Select(ctx, p.stmt.sql(), p.stmt.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query related %s: %w", p.table, err)
	}

	items := make([]*entities.RelatedItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, p.item(row))
	}
	return items, nil
}

// item converts one result row
func (p *plan) item(row repositories.Row) *entities.RelatedItem {
	it := &entities.RelatedItem{
		RelationID: row.Int64(p.relation),
		SubjectID:  row.Int64(colSubjectID),
		ItemID:     row.Int64(p.itemKey),
		Table:      p.table,
		Direction:  p.direction,
		Fields:     make(map[string]interface{}, len(row)),
	}
	for k, v := range row {
		if !strings.HasPrefix(k, "rel_") {
			it.Fields[k] = v
		}
	}

	if t := p.target; t != nil {
		if t.TypeField != "" {
			it.TypeID = row.Int64(t.TypeField)
		}
		if t.IdnoField != "" {
			it.Idno = row.String(t.IdnoField)
		}
		if t.AccessField != "" {
			it.Access = int(row.Int64(t.AccessField))
		}
	}

	if p.link != nil {
		it.RelationshipTypeID = row.Int64(colTypeID)
		it.Rank = row.Int64(colRank)
		it.SourceInfo = row.String(colSourceInfo)
		it.IsPrimary = row.Bool(colPrimary)
		if p.link.HasEffectiveDate() && !row.IsNull(colStart) {
			it.EffectiveDate = &entities.EffectiveDate{Start: row.Float64(colStart), End: row.Float64(colEnd)}
		}
	}
	return it
}

// checkAccess drops rows the request user may not read
func (s *Service) checkAccess(ctx context.Context, items []*entities.RelatedItem, opts *Options) ([]*entities.RelatedItem, error) {
	if s.access == nil || !s.cfg.ItemLevelAccessChecking || len(items) == 0 {
		return items, nil
	}
	scope := entities.ScopeFromContext(ctx)
	if opts.UserID != 0 {
		scope.UserID = opts.UserID
	}

	rows := make([]access.Row, len(items))
	for i, it := range items {
		rows[i] = access.Row{ID: it.ItemID, Fields: it.Fields}
	}
	num, _ := s.resolver.Graph().TableNumber(items[0].Table)
	allowed, err := s.access.Allowed(ctx, scope, num, rows, access.ActionRead)
	if err != nil {
		return nil, err
	}

	kept := items[:0]
	for _, it := range items {
		if allowed[it.ItemID] {
			kept = append(kept, it)
		}
	}
	return kept, nil
}

// nameTypes fills relationship type codes and names, reversed where the plan reads the link backwards
func (s *Service) nameTypes(ctx context.Context, plans []*plan, items []*entities.RelatedItem) error {
	if s.types == nil || len(items) == 0 {
		return nil
	}
	var ids []int64
	for _, it := range items {
		if it.RelationshipTypeID > 0 {
			ids = append(ids, it.RelationshipTypeID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	types, err := s.types.RelationshipTypes(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load relationship types: %w", err)
	}

	reverse := make(map[entities.Direction]bool, len(plans))
	for _, p := range plans {
		reverse[p.direction] = p.reverse
	}
	for _, it := range items {
		rt, ok := types[it.RelationshipTypeID]
		if !ok {
			continue
		}
		it.RelationshipTypeCode = rt.TypeCode
		it.RelationshipTypename = rt.DisplayName(reverse[it.Direction])
	}
	return nil
}

func (s *Service) paginate(items []*entities.RelatedItem, opts *Options) []*entities.RelatedItem {
	limit := opts.Limit
	if limit == 0 {
		limit = s.cfg.RelatedDefaultLimit
		if limit <= 0 {
			limit = defaultLimit
		}
	}
	if opts.Start >= len(items) {
		return items[:0]
	}
	items = items[opts.Start:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func excludePrimary(items []*entities.RelatedItem, primary map[string][]int64) []*entities.RelatedItem {
	if len(primary) == 0 {
		return items
	}
	kept := items[:0]
	for _, it := range items {
		if !slices.Contains(primary[it.Table], it.ItemID) {
			kept = append(kept, it)
		}
	}
	return kept
}

func restrictToValues(items []*entities.RelatedItem, values map[string][]string) []*entities.RelatedItem {
	if len(values) == 0 {
		return items
	}
	kept := items[:0]
	for _, it := range items {
		ok := true
		for field, allowed := range values {
			if i := strings.IndexByte(field, '.'); i >= 0 && field[:i] == it.Table {
				field = field[i+1:]
			}
			if !slices.Contains(allowed, fmt.Sprint(it.Fields[field])) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, it)
		}
	}
	return kept
}

func limitFields(items []*entities.RelatedItem, fields []string) {
	if len(fields) == 0 {
		return
	}
	for _, it := range items {
		limited := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if v, ok := it.Fields[f]; ok {
				limited[f] = v
			}
		}
		it.Fields = limited
	}
}

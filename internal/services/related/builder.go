package related

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// Column aliases carrying relationship values alongside the related row
const (
	colRelationID = "rel_id"
	colSubjectID  = "rel_subject_id"
	colTypeID     = "rel_type_id"
	colRank       = "rel_rank"
	colStart      = "rel_sdatetime"
	colEnd        = "rel_edatetime"
	colSourceInfo = "rel_source_info"
	colPrimary    = "rel_is_primary"
)

var relationColumns = []string{colRelationID, colSubjectID, colTypeID, colRank, colStart, colEnd, colSourceInfo, colPrimary}

const (
	aliasTarget = "t"
	aliasLink   = "l"
	aliasOwner  = "s"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// statement accumulates one SELECT written with ? placeholders
type statement struct {
	d       repositories.Dialect
	selects []string
	from    string
	where   []string
	args    []interface{}
}

func (s *statement) col(alias, field string) string {
	return s.d.Column(alias, field)
}

func (s *statement) selectAs(alias, field, as string) {
	s.selects = append(s.selects, s.col(alias, field)+" AS "+s.d.Quote(as))
}

func (s *statement) and(cond string, args ...interface{}) {
	s.where = append(s.where, cond)
	s.args = append(s.args, args...)
}

func (s *statement) in(alias, field string, ids []int64) {
	cond, args := s.d.In(s.col(alias, field), ids)
	s.and(cond, args...)
}

func (s *statement) notIn(alias, field string, ids []int64) {
	cond, args := s.d.NotIn(s.col(alias, field), ids)
	s.and(cond, args...)
}

func (s *statement) sql() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(s.selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(s.from)
	if len(s.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(s.where, " AND "))
	}
	return sb.String()
}

// plan is one query branch: the statement plus what its rows mean
type plan struct {
	stmt      *statement
	target    *entities.EntityDef // nil when the related rows are link rows
	link      *entities.LinkDef   // nil for many-to-one and polymorphic paths
	itemKey   string
	table     string
	linkAlias string // alias of the table carrying relationship columns
	relation  string // column holding the relation id
	direction entities.Direction
	reverse   bool // relationship type names read in reverse
}

// selectRelation adds the link columns of alias under their rel_* names
func (p *plan) selectRelation(alias, subjectField string) {
	s, l := p.stmt, p.link
	s.selectAs(alias, l.Key, colRelationID)
	s.selectAs(alias, subjectField, colSubjectID)
	if l.HasType() {
		s.selectAs(alias, l.TypeField, colTypeID)
	}
	if l.HasRank() {
		s.selectAs(alias, l.RankField, colRank)
	}
	if l.HasEffectiveDate() {
		s.selectAs(alias, l.EffectiveStartField, colStart)
		s.selectAs(alias, l.EffectiveEndField, colEnd)
	}
	if l.HasSourceInfo() {
		s.selectAs(alias, l.SourceInfoField, colSourceInfo)
	}
	if l.HasPrimary() {
		s.selectAs(alias, l.PrimaryField, colPrimary)
	}
}

func newStatement(d repositories.Dialect) *statement {
	return &statement{d: d}
}

// manyToMany joins the related table through the link table
func manyToMany(d repositories.Dialect, target *entities.EntityDef, link *entities.LinkDef, subjectField, targetField string, ids []int64, dir entities.Direction, reverse bool) *plan {
	s := newStatement(d)
	s.selects = []string{aliasTarget + ".*"}
	s.from = fmt.Sprintf("%s %s INNER JOIN %s %s ON %s = %s",
		d.Quote(target.Name), aliasTarget, d.Quote(link.Name), aliasLink,
		d.Column(aliasLink, targetField), d.Column(aliasTarget, target.Key))
	p := &plan{stmt: s, target: target, link: link, itemKey: target.Key, table: target.Name,
		linkAlias: aliasLink, relation: colRelationID, direction: dir, reverse: reverse}
	p.selectRelation(aliasLink, subjectField)
	s.in(aliasLink, subjectField, ids)
	return p
}

// linkRows selects the link rows themselves
func linkRows(d repositories.Dialect, link *entities.LinkDef, subjectField string, ids []int64, dir entities.Direction) *plan {
	s := newStatement(d)
	s.selects = []string{aliasTarget + ".*"}
	s.from = d.Quote(link.Name) + " " + aliasTarget
	p := &plan{stmt: s, link: link, itemKey: link.Key, table: link.Name,
		linkAlias: aliasTarget, relation: colRelationID, direction: dir, reverse: dir == entities.DirectionRightToLeft}
	p.selectRelation(aliasTarget, subjectField)
	s.in(aliasTarget, subjectField, ids)
	return p
}

// manyToOneFromMany selects the referenced rows: the subject holds the foreign key
func manyToOneFromMany(d repositories.Dialect, one, many *entities.EntityDef, fk string, ids []int64) *plan {
	s := newStatement(d)
	s.selects = []string{aliasTarget + ".*"}
	s.from = fmt.Sprintf("%s %s INNER JOIN %s %s ON %s = %s",
		d.Quote(one.Name), aliasTarget, d.Quote(many.Name), aliasOwner,
		d.Column(aliasOwner, fk), d.Column(aliasTarget, one.Key))
	s.selectAs(aliasOwner, many.Key, colSubjectID)
	s.in(aliasOwner, many.Key, ids)
	return &plan{stmt: s, target: one, itemKey: one.Key, table: one.Name, relation: colSubjectID}
}

// manyToOneFromOne selects the referencing rows: the related table holds the foreign key
func manyToOneFromOne(d repositories.Dialect, many *entities.EntityDef, fk string, ids []int64) *plan {
	s := newStatement(d)
	s.selects = []string{aliasTarget + ".*"}
	s.from = d.Quote(many.Name) + " " + aliasTarget
	s.selectAs(aliasTarget, fk, colSubjectID)
	s.in(aliasTarget, fk, ids)
	return &plan{stmt: s, target: many, itemKey: many.Key, table: many.Name, relation: many.Key}
}

// polymorphic selects holder rows pointing at the subject through (table_num, row_id)
func polymorphic(d repositories.Dialect, holder *entities.EntityDef, subjectNum int, ids []int64) *plan {
	ref := holder.Polymorphic
	s := newStatement(d)
	s.selects = []string{aliasTarget + ".*"}
	s.from = d.Quote(holder.Name) + " " + aliasTarget
	s.selectAs(aliasTarget, ref.RowIDField, colSubjectID)
	s.and(s.col(aliasTarget, ref.TableNumField)+" = ?", subjectNum)
	s.in(aliasTarget, ref.RowIDField, ids)
	return &plan{stmt: s, target: holder, itemKey: holder.Key, table: holder.Name, relation: holder.Key}
}

// whereField maps a possibly table-qualified field to a column reference of the plan
func (p *plan) whereField(field string) (string, error) {
	table, name := "", field
	if i := strings.IndexByte(field, '.'); i >= 0 {
		table, name = field[:i], field[i+1:]
	}
	if !identifier.MatchString(name) {
		return "", fmt.Errorf("invalid field %q", field)
	}

	switch {
	case table == "" || table == p.table:
		return p.stmt.col(aliasTarget, name), nil
	case p.link != nil && table == p.link.Name:
		return p.stmt.col(p.linkAlias, name), nil
	}
	return "", fmt.Errorf("field %q does not belong to %s", field, p.table)
}

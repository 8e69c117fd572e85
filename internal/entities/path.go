package entities

import "fmt"

// PathKind classifies how two entity tables are joined
type PathKind int

const (
	PathSelfRelation PathKind = iota + 1
	PathManyToMany
	PathManyToOne
	PathLinkRows
	PathPolymorphic
)

// String returns a string representation of the path kind
func (k PathKind) String() string {
	switch k {
	case PathSelfRelation:
		return "self-relation"
	case PathManyToMany:
		return "many-to-many"
	case PathManyToOne:
		return "many-to-one"
	case PathLinkRows:
		return "link-rows"
	case PathPolymorphic:
		return "polymorphic"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Path is the resolved join between a subject table and a target table.
// It is one of SelfRelationPath, ManyToManyPath, ManyToOnePath,
// LinkRowsPath or PolymorphicPath.
type Path interface {
	Kind() PathKind
	// Tables returns the hop tables in order, starting with the subject
	Tables() []string
	isPath()
}

// SelfRelationPath relates rows of the same table through a self link table
type SelfRelationPath struct {
	Table string
	Link  *LinkDef
}

func (p *SelfRelationPath) Kind() PathKind { return PathSelfRelation }
func (p *SelfRelationPath) Tables() []string {
	return []string{p.Table, p.Link.Name, p.Table}
}
func (p *SelfRelationPath) isPath() {}

// ManyToManyPath relates two tables through a link table (subject -> link -> target)
type ManyToManyPath struct {
	Subject string
	Target  string
	Link    *LinkDef
}

func (p *ManyToManyPath) Kind() PathKind { return PathManyToMany }
func (p *ManyToManyPath) Tables() []string {
	return []string{p.Subject, p.Link.Name, p.Target}
}
func (p *ManyToManyPath) isPath() {}

// SubjectField returns the link field holding the subject's id
func (p *ManyToManyPath) SubjectField() string {
	own, _, _ := p.Link.Sides(p.Subject)
	return own
}

// TargetField returns the link field holding the target's id
func (p *ManyToManyPath) TargetField() string {
	_, other, _ := p.Link.Sides(p.Subject)
	return other
}

// SubjectIsLeft reports whether the subject occupies the left side of the link
func (p *ManyToManyPath) SubjectIsLeft() bool {
	return p.Link.LeftTable == p.Subject
}

// ManyToOnePath relates two tables through a foreign key held by ManyTable
// that references OneTable.
type ManyToOnePath struct {
	Subject   string
	Target    string
	OneTable  string
	ManyTable string
	FKField   string
}

func (p *ManyToOnePath) Kind() PathKind { return PathManyToOne }
func (p *ManyToOnePath) Tables() []string {
	return []string{p.Subject, p.Target}
}
func (p *ManyToOnePath) isPath() {}

// SubjectIsOne reports whether the subject is the referenced (one) side
func (p *ManyToOnePath) SubjectIsOne() bool {
	return p.Subject == p.OneTable
}

// LinkRowsPath targets the link table itself: the related items are link rows
type LinkRowsPath struct {
	Subject string
	Link    *LinkDef
}

func (p *LinkRowsPath) Kind() PathKind { return PathLinkRows }
func (p *LinkRowsPath) Tables() []string {
	return []string{p.Subject, p.Link.Name}
}
func (p *LinkRowsPath) isPath() {}

// PolymorphicPath relates a table to Holder through Holder's (table_num, row_id) columns
type PolymorphicPath struct {
	Subject string
	Target  string
	Holder  string
	Ref     *PolymorphicFK
}

func (p *PolymorphicPath) Kind() PathKind { return PathPolymorphic }
func (p *PolymorphicPath) Tables() []string {
	return []string{p.Subject, p.Target}
}
func (p *PolymorphicPath) isPath() {}

// Resolution is the cached result of resolving a (subject, target) pair
type Resolution struct {
	SubjectTable string
	TargetTable  string
	TargetNumber int
	Path         Path
}

// LinkTable returns the table that holds the relationship rows for the resolution:
// the link table for self and many-to-many paths, the many table for many-to-one paths
func (r *Resolution) LinkTable() string {
	switch p := r.Path.(type) {
	case *SelfRelationPath:
		return p.Link.Name
	case *ManyToManyPath:
		return p.Link.Name
	case *ManyToOnePath:
		return p.ManyTable
	case *LinkRowsPath:
		return p.Link.Name
	case *PolymorphicPath:
		return p.Holder
	}
	return ""
}

// Link returns the link definition for path kinds that go through a link table
func (r *Resolution) Link() *LinkDef {
	switch p := r.Path.(type) {
	case *SelfRelationPath:
		return p.Link
	case *ManyToManyPath:
		return p.Link
	case *LinkRowsPath:
		return p.Link
	}
	return nil
}

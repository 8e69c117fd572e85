package schemagraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/asakaida/relata/internal/entities"
)

var (
	// ErrUnknownTable is returned for table names or numbers not in the datamodel
	ErrUnknownTable = errors.New("unknown table")

	// ErrNoPath is returned when two tables are not connected
	ErrNoPath = errors.New("no path between tables")
)

// Relation is a one-to-many edge: ManyField on ManyTable holds OneField of OneTable
type Relation struct {
	OneTable  string
	OneField  string
	ManyTable string
	ManyField string
}

// Graph is the static join metadata of a datamodel.
// It is immutable after construction and safe for concurrent use.
type Graph struct {
	model    *entities.Datamodel
	entities map[string]*entities.EntityDef
	links    map[string]*entities.LinkDef
	labels   map[string]*entities.LabelDef
	numbers  map[int]string
	tables   map[string]int
	adj      map[string][]string
}

// New builds a graph from a datamodel. Adjacency follows declaration order so
// shortest paths are deterministic.
func New(model *entities.Datamodel) *Graph {
	g := &Graph{
		model:    model,
		entities: make(map[string]*entities.EntityDef),
		links:    make(map[string]*entities.LinkDef),
		labels:   make(map[string]*entities.LabelDef),
		numbers:  make(map[int]string),
		tables:   make(map[string]int),
		adj:      make(map[string][]string),
	}

	for _, e := range model.Entities {
		g.entities[e.Name] = e
		g.numbers[e.Number] = e.Name
		g.tables[e.Name] = e.Number
	}
	for _, l := range model.Links {
		g.links[l.Name] = l
		g.numbers[l.Number] = l.Name
		g.tables[l.Name] = l.Number
	}
	for _, lb := range model.Labels {
		g.labels[lb.Name] = lb
	}

	for _, e := range model.Entities {
		for _, fk := range e.References {
			g.connect(e.Name, fk.Table)
		}
	}
	for _, l := range model.Links {
		g.connect(l.LeftTable, l.Name)
		g.connect(l.RightTable, l.Name)
	}

	return g
}

func (g *Graph) connect(a, b string) {
	for _, n := range g.adj[a] {
		if n == b {
			return
		}
	}
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

// Datamodel returns the underlying datamodel
func (g *Graph) Datamodel() *entities.Datamodel {
	return g.model
}

// Entity returns the entity definition, or nil
func (g *Graph) Entity(name string) *entities.EntityDef {
	return g.entities[name]
}

// Link returns the link definition, or nil
func (g *Graph) Link(name string) *entities.LinkDef {
	return g.links[name]
}

// Labels returns the label table of an entity, or nil
func (g *Graph) Labels(table string) *entities.LabelDef {
	e := g.entities[table]
	if e == nil || !e.HasLabels() {
		return nil
	}
	return g.labels[e.LabelTable]
}

// HasTable reports whether name is an entity or link table
func (g *Graph) HasTable(name string) bool {
	_, ok := g.tables[name]
	return ok
}

// TableName returns the table with the given number
func (g *Graph) TableName(num int) (string, bool) {
	name, ok := g.numbers[num]
	return name, ok
}

// TableNumber returns the number of a table
func (g *Graph) TableNumber(name string) (int, bool) {
	num, ok := g.tables[name]
	return num, ok
}

// PrimaryKey returns the primary key field of an entity or link table
func (g *Graph) PrimaryKey(table string) string {
	if e := g.entities[table]; e != nil {
		return e.Key
	}
	if l := g.links[table]; l != nil {
		return l.Key
	}
	return ""
}

// SelfRelationLink returns the link used to relate rows of table to each other, or nil
func (g *Graph) SelfRelationLink(table string) *entities.LinkDef {
	e := g.entities[table]
	if e == nil || e.SelfLink == "" {
		return nil
	}
	return g.links[e.SelfLink]
}

// ResolveTableRef turns a table name, a table number or a "table.field" reference into a table name
func (g *Graph) ResolveTableRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if name, ok := g.numbers[n]; ok {
			return name, nil
		}
		return "", fmt.Errorf("%w: %d", ErrUnknownTable, n)
	}
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		ref = ref[:i]
	}
	if !g.HasTable(ref) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, ref)
	}
	return ref, nil
}

// Path returns the shortest sequence of tables joining from and to, both included
func (g *Graph) Path(from, to string) ([]string, error) {
	if !g.HasTable(from) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, from)
	}
	if !g.HasTable(to) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, to)
	}
	if from == to {
		return []string{from}, nil
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[node] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = node
			if next == to {
				return g.unwind(prev, to), nil
			}
			queue = append(queue, next)
		}
	}

	return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
}

func (g *Graph) unwind(prev map[string]string, to string) []string {
	var path []string
	for n := to; n != ""; n = prev[n] {
		path = append([]string{n}, path...)
	}
	return path
}

// Relationships returns the join field pairs between two adjacent tables as
// (field on a, field on b). A self link yields both of its sides.
func (g *Graph) Relationships(a, b string) [][2]string {
	var pairs [][2]string

	if l := g.links[b]; l != nil && g.entities[a] != nil {
		key := g.entities[a].Key
		if l.LeftTable == a {
			pairs = append(pairs, [2]string{key, l.LeftField})
		}
		if l.RightTable == a {
			pairs = append(pairs, [2]string{key, l.RightField})
		}
		return pairs
	}
	if l := g.links[a]; l != nil && g.entities[b] != nil {
		for _, p := range g.Relationships(b, a) {
			pairs = append(pairs, [2]string{p[1], p[0]})
		}
		return pairs
	}

	for _, r := range g.ManyToOneRelations(a) {
		if r.OneTable == b {
			pairs = append(pairs, [2]string{r.ManyField, r.OneField})
		}
	}
	for _, r := range g.ManyToOneRelations(b) {
		if r.OneTable == a {
			pairs = append(pairs, [2]string{r.OneField, r.ManyField})
		}
	}
	return pairs
}

// ManyToOneRelations returns the references held by table, including link sides
func (g *Graph) ManyToOneRelations(table string) []Relation {
	var out []Relation
	if e := g.entities[table]; e != nil {
		for _, fk := range e.References {
			out = append(out, Relation{OneTable: fk.Table, OneField: g.PrimaryKey(fk.Table), ManyTable: table, ManyField: fk.Field})
		}
	}
	if l := g.links[table]; l != nil {
		out = append(out,
			Relation{OneTable: l.LeftTable, OneField: g.PrimaryKey(l.LeftTable), ManyTable: table, ManyField: l.LeftField},
			Relation{OneTable: l.RightTable, OneField: g.PrimaryKey(l.RightTable), ManyTable: table, ManyField: l.RightField},
		)
	}
	return out
}

// OneToManyRelations returns every table column referencing one, in declaration order.
// When many is non-empty only relations held by that table are returned.
func (g *Graph) OneToManyRelations(one, many string) []Relation {
	var out []Relation
	collect := func(table string) {
		if many != "" && table != many {
			return
		}
		for _, r := range g.ManyToOneRelations(table) {
			if r.OneTable == one {
				out = append(out, r)
			}
		}
	}
	for _, e := range g.model.Entities {
		collect(e.Name)
	}
	for _, l := range g.model.Links {
		collect(l.Name)
	}
	return out
}

// LinksFor returns the links touching table in declaration order
func (g *Graph) LinksFor(table string) []*entities.LinkDef {
	var out []*entities.LinkDef
	for _, l := range g.model.Links {
		if l.Touches(table) {
			out = append(out, l)
		}
	}
	return out
}

// PolymorphicHolders returns the entities that can point at any table through a (table_num, row_id) pair
func (g *Graph) PolymorphicHolders() []*entities.EntityDef {
	var out []*entities.EntityDef
	for _, e := range g.model.Entities {
		if e.Polymorphic != nil {
			out = append(out, e)
		}
	}
	return out
}

package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validator validates the parsed datamodel AST
type Validator struct {
	model    *DatamodelAST
	errors   []string
	entities map[string]*EntityAST
	links    map[string]*LinkAST
	labels   map[string]*LabelsAST
}

// NewValidator creates a new Validator
func NewValidator(model *DatamodelAST) *Validator {
	v := &Validator{
		model:    model,
		errors:   []string{},
		entities: make(map[string]*EntityAST),
		links:    make(map[string]*LinkAST),
		labels:   make(map[string]*LabelsAST),
	}
	for _, entity := range model.Entities {
		v.entities[entity.Name] = entity
	}
	for _, link := range model.Links {
		v.links[link.Name] = link
	}
	for _, labels := range model.Labels {
		v.labels[labels.Name] = labels
	}
	return v
}

// Validate validates the datamodel and returns error if invalid
func (v *Validator) Validate() error {
	v.validateUniqueTables()
	v.validateIdentifiers()
	v.validateLinks()
	v.validateEntityReferences()
	v.validateLabelOwnership()

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *Validator) addError(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

// validateUniqueTables checks that table names and numbers are unique across all blocks
func (v *Validator) validateUniqueTables() {
	names := make(map[string]bool)
	numbers := make(map[int]string)

	check := func(kind, name string, number int) {
		if names[name] {
			v.addError("duplicate table name: %s", name)
		}
		names[name] = true
		if number == 0 {
			return
		}
		if other, exists := numbers[number]; exists {
			v.addError("%s %s: table number %d already used by %s", kind, name, number, other)
		}
		numbers[number] = name
	}

	for _, entity := range v.model.Entities {
		check("entity", entity.Name, entity.Number)
	}
	for _, link := range v.model.Links {
		check("link", link.Name, link.Number)
	}
	for _, labels := range v.model.Labels {
		check("labels", labels.Name, 0)
	}
}

// validateIdentifiers checks every table and field name; they are interpolated into SQL
func (v *Validator) validateIdentifiers() {
	check := func(owner, value string) {
		if value != "" && !identifierPattern.MatchString(value) {
			v.addError("%s: invalid identifier %q", owner, value)
		}
	}

	for _, e := range v.model.Entities {
		owner := "entity " + e.Name
		for _, f := range []string{e.Name, e.Key, e.Idno, e.IdnoSort, e.Type, e.Access, e.Deleted} {
			check(owner, f)
		}
		for _, ref := range e.References {
			check(owner, ref.Field)
		}
		if e.Polymorphic != nil {
			check(owner, e.Polymorphic.TableNumField)
			check(owner, e.Polymorphic.RowIDField)
		}
	}
	for _, l := range v.model.Links {
		owner := "link " + l.Name
		for _, f := range []string{l.Name, l.Key, l.LeftField, l.RightField, l.Type, l.Rank, l.EffectiveStart, l.EffectiveEnd, l.SourceInfo, l.Primary} {
			check(owner, f)
		}
	}
	for _, lb := range v.model.Labels {
		owner := "labels " + lb.Name
		for _, f := range []string{lb.Name, lb.Key, lb.Owner, lb.Display, lb.Locale, lb.Preferred} {
			check(owner, f)
		}
	}
}

// validateLinks checks that both sides of every link are entities with distinct fields
func (v *Validator) validateLinks() {
	for _, link := range v.model.Links {
		if link.LeftTable == "" || link.RightTable == "" {
			v.addError("link %s: both left and right sides are required", link.Name)
			continue
		}
		if _, ok := v.entities[link.LeftTable]; !ok {
			v.addError("link %s: left side references undefined entity: %s", link.Name, link.LeftTable)
		}
		if _, ok := v.entities[link.RightTable]; !ok {
			v.addError("link %s: right side references undefined entity: %s", link.Name, link.RightTable)
		}
		if link.LeftField == link.RightField {
			v.addError("link %s: left and right fields must differ", link.Name)
		}
		if (link.EffectiveStart == "") != (link.EffectiveEnd == "") {
			v.addError("link %s: effective_date needs both start and end fields", link.Name)
		}
	}
}

// validateEntityReferences checks self links and many-to-one references
func (v *Validator) validateEntityReferences() {
	for _, entity := range v.model.Entities {
		if entity.Self != "" {
			link, ok := v.links[entity.Self]
			switch {
			case !ok:
				v.addError("entity %s: self link references undefined link: %s", entity.Name, entity.Self)
			case link.LeftTable != entity.Name || link.RightTable != entity.Name:
				v.addError("entity %s: self link %s must reference %s on both sides", entity.Name, entity.Self, entity.Name)
			}
		}

		fields := make(map[string]bool)
		for _, ref := range entity.References {
			if _, ok := v.entities[ref.Table]; !ok {
				v.addError("entity %s: reference %s references undefined entity: %s", entity.Name, ref.Field, ref.Table)
			}
			if fields[ref.Field] {
				v.addError("entity %s: duplicate reference field: %s", entity.Name, ref.Field)
			}
			fields[ref.Field] = true
		}

		if entity.Labels != "" {
			if _, ok := v.labels[entity.Labels]; !ok {
				v.addError("entity %s: labels references undefined labels table: %s", entity.Name, entity.Labels)
			}
		}
	}
}

// validateLabelOwnership checks that a label table belongs to exactly one entity
func (v *Validator) validateLabelOwnership() {
	owners := make(map[string][]string)
	for _, entity := range v.model.Entities {
		if entity.Labels != "" {
			owners[entity.Labels] = append(owners[entity.Labels], entity.Name)
		}
	}
	for _, labels := range v.model.Labels {
		switch n := len(owners[labels.Name]); {
		case n == 0:
			v.addError("labels %s: not used by any entity", labels.Name)
		case n > 1:
			v.addError("labels %s: shared by entities %s", labels.Name, strings.Join(owners[labels.Name], ", "))
		}
	}
}

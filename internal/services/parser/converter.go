package parser

import (
	"fmt"
	"strings"

	"github.com/asakaida/relata/internal/entities"
	"github.com/jinzhu/inflection"
)

const (
	defaultLinkKey      = "relation_id"
	defaultLabelKey     = "label_id"
	defaultLabelDisplay = "name"
	defaultLabelLocale  = "locale"
)

// DefaultKey derives a primary key name from a table name: "ca_objects" -> "object_id"
func DefaultKey(table string) string {
	base := strings.TrimPrefix(table, "ca_")
	return inflection.Singular(base) + "_id"
}

// ASTToDatamodel converts DatamodelAST to entities.Datamodel, filling in defaults
func ASTToDatamodel(ast *DatamodelAST) (*entities.Datamodel, error) {
	model := &entities.Datamodel{
		Entities: make([]*entities.EntityDef, 0, len(ast.Entities)),
		Links:    make([]*entities.LinkDef, 0, len(ast.Links)),
		Labels:   make([]*entities.LabelDef, 0, len(ast.Labels)),
	}

	labelOwners := make(map[string]*entities.EntityDef)
	for _, entityAST := range ast.Entities {
		entity := convertEntity(entityAST)
		model.Entities = append(model.Entities, entity)
		if entity.LabelTable != "" {
			labelOwners[entity.LabelTable] = entity
		}
	}

	for _, linkAST := range ast.Links {
		model.Links = append(model.Links, convertLink(linkAST))
	}

	for _, labelsAST := range ast.Labels {
		owner, ok := labelOwners[labelsAST.Name]
		if !ok {
			return nil, fmt.Errorf("failed to convert labels %s: no entity uses it", labelsAST.Name)
		}
		model.Labels = append(model.Labels, convertLabels(labelsAST, owner))
	}

	return model, nil
}

func convertEntity(ast *EntityAST) *entities.EntityDef {
	entity := &entities.EntityDef{
		Name:          ast.Name,
		Number:        ast.Number,
		Key:           ast.Key,
		IdnoField:     ast.Idno,
		IdnoSortField: ast.IdnoSort,
		TypeField:     ast.Type,
		AccessField:   ast.Access,
		DeletedField:  ast.Deleted,
		LabelTable:    ast.Labels,
		SelfLink:      ast.Self,
		References:    make([]*entities.ForeignKey, 0, len(ast.References)),
	}
	if entity.Key == "" {
		entity.Key = DefaultKey(ast.Name)
	}
	for _, ref := range ast.References {
		entity.References = append(entity.References, &entities.ForeignKey{Field: ref.Field, Table: ref.Table})
	}
	if ast.Polymorphic != nil {
		entity.Polymorphic = &entities.PolymorphicFK{
			TableNumField: ast.Polymorphic.TableNumField,
			RowIDField:    ast.Polymorphic.RowIDField,
		}
	}
	return entity
}

func convertLink(ast *LinkAST) *entities.LinkDef {
	link := &entities.LinkDef{
		Name:                ast.Name,
		Number:              ast.Number,
		Key:                 ast.Key,
		LeftTable:           ast.LeftTable,
		LeftField:           ast.LeftField,
		RightTable:          ast.RightTable,
		RightField:          ast.RightField,
		TypeField:           ast.Type,
		RankField:           ast.Rank,
		EffectiveStartField: ast.EffectiveStart,
		EffectiveEndField:   ast.EffectiveEnd,
		SourceInfoField:     ast.SourceInfo,
		PrimaryField:        ast.Primary,
	}
	if link.Key == "" {
		link.Key = defaultLinkKey
	}
	return link
}

func convertLabels(ast *LabelsAST, owner *entities.EntityDef) *entities.LabelDef {
	labels := &entities.LabelDef{
		Name:           ast.Name,
		Key:            ast.Key,
		OwnerField:     ast.Owner,
		DisplayField:   ast.Display,
		LocaleField:    ast.Locale,
		PreferredField: ast.Preferred,
	}
	if labels.Key == "" {
		labels.Key = defaultLabelKey
	}
	if labels.OwnerField == "" {
		labels.OwnerField = owner.Key
	}
	if labels.DisplayField == "" {
		labels.DisplayField = defaultLabelDisplay
	}
	if labels.LocaleField == "" {
		labels.LocaleField = defaultLabelLocale
	}
	return labels
}

// DatamodelToAST converts entities.Datamodel back to DatamodelAST
func DatamodelToAST(model *entities.Datamodel) *DatamodelAST {
	ast := &DatamodelAST{
		Entities: make([]*EntityAST, 0, len(model.Entities)),
		Links:    make([]*LinkAST, 0, len(model.Links)),
		Labels:   make([]*LabelsAST, 0, len(model.Labels)),
	}

	for _, e := range model.Entities {
		entityAST := &EntityAST{
			Name:       e.Name,
			Number:     e.Number,
			Key:        e.Key,
			Idno:       e.IdnoField,
			IdnoSort:   e.IdnoSortField,
			Type:       e.TypeField,
			Access:     e.AccessField,
			Deleted:    e.DeletedField,
			Labels:     e.LabelTable,
			Self:       e.SelfLink,
			References: make([]*ReferenceAST, 0, len(e.References)),
		}
		for _, ref := range e.References {
			entityAST.References = append(entityAST.References, &ReferenceAST{Field: ref.Field, Table: ref.Table})
		}
		if e.Polymorphic != nil {
			entityAST.Polymorphic = &PolymorphicAST{TableNumField: e.Polymorphic.TableNumField, RowIDField: e.Polymorphic.RowIDField}
		}
		ast.Entities = append(ast.Entities, entityAST)
	}

	for _, l := range model.Links {
		ast.Links = append(ast.Links, &LinkAST{
			Name:           l.Name,
			Number:         l.Number,
			Key:            l.Key,
			LeftTable:      l.LeftTable,
			LeftField:      l.LeftField,
			RightTable:     l.RightTable,
			RightField:     l.RightField,
			Type:           l.TypeField,
			Rank:           l.RankField,
			EffectiveStart: l.EffectiveStartField,
			EffectiveEnd:   l.EffectiveEndField,
			SourceInfo:     l.SourceInfoField,
			Primary:        l.PrimaryField,
		})
	}

	for _, lb := range model.Labels {
		ast.Labels = append(ast.Labels, &LabelsAST{
			Name:      lb.Name,
			Key:       lb.Key,
			Owner:     lb.OwnerField,
			Display:   lb.DisplayField,
			Locale:    lb.LocaleField,
			Preferred: lb.PreferredField,
		})
	}

	return ast
}

// Parse parses, validates and converts a datamodel DSL in one step
func Parse(dsl string) (*entities.Datamodel, error) {
	p := NewParser(NewLexer(dsl))
	ast, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSL: %w", err)
	}
	if err := NewValidator(ast).Validate(); err != nil {
		return nil, fmt.Errorf("datamodel validation failed: %w", err)
	}
	model, err := ASTToDatamodel(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to convert datamodel: %w", err)
	}
	model.DSL = dsl
	return model, nil
}

package parser

import (
	"fmt"
	"strings"
)

// Generator generates DSL from AST
type Generator struct {
	indent string
}

// NewGenerator creates a new Generator
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
	}
}

// Generate generates DSL string from DatamodelAST
func (g *Generator) Generate(model *DatamodelAST) string {
	blocks := make([]string, 0, len(model.Entities)+len(model.Links)+len(model.Labels))
	for _, entity := range model.Entities {
		blocks = append(blocks, g.generateEntity(entity))
	}
	for _, labels := range model.Labels {
		blocks = append(blocks, g.generateLabels(labels))
	}
	for _, link := range model.Links {
		blocks = append(blocks, g.generateLink(link))
	}
	return strings.Join(blocks, "\n")
}

func (g *Generator) line(sb *strings.Builder, parts ...string) {
	for _, p := range parts[1:] {
		if p == "" {
			return
		}
	}
	sb.WriteString(g.indent)
	sb.WriteString(strings.Join(parts, " "))
	sb.WriteString("\n")
}

func (g *Generator) generateEntity(entity *EntityAST) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("entity %s = %d {\n", entity.Name, entity.Number))
	g.line(&sb, "key", entity.Key)
	if entity.Idno != "" {
		if entity.IdnoSort != "" {
			g.line(&sb, "idno", entity.Idno, "sort", entity.IdnoSort)
		} else {
			g.line(&sb, "idno", entity.Idno)
		}
	}
	g.line(&sb, "type", entity.Type)
	g.line(&sb, "access", entity.Access)
	g.line(&sb, "deleted", entity.Deleted)
	g.line(&sb, "labels", entity.Labels)
	g.line(&sb, "self", entity.Self)
	for _, ref := range entity.References {
		g.line(&sb, "reference", ref.Field, "@"+ref.Table)
	}
	if entity.Polymorphic != nil {
		g.line(&sb, "polymorphic", entity.Polymorphic.TableNumField, entity.Polymorphic.RowIDField)
	}
	sb.WriteString("}\n")

	return sb.String()
}

func (g *Generator) generateLink(link *LinkAST) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("link %s = %d {\n", link.Name, link.Number))
	g.line(&sb, "key", link.Key)
	g.line(&sb, "left", link.LeftTable, link.LeftField)
	g.line(&sb, "right", link.RightTable, link.RightField)
	g.line(&sb, "type", link.Type)
	g.line(&sb, "rank", link.Rank)
	g.line(&sb, "effective_date", link.EffectiveStart, link.EffectiveEnd)
	g.line(&sb, "source_info", link.SourceInfo)
	g.line(&sb, "primary", link.Primary)
	sb.WriteString("}\n")

	return sb.String()
}

func (g *Generator) generateLabels(labels *LabelsAST) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("labels %s {\n", labels.Name))
	g.line(&sb, "key", labels.Key)
	g.line(&sb, "owner", labels.Owner)
	g.line(&sb, "display", labels.Display)
	g.line(&sb, "locale", labels.Locale)
	g.line(&sb, "preferred", labels.Preferred)
	sb.WriteString("}\n")

	return sb.String()
}

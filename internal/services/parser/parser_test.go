package parser

import (
	"strings"
	"testing"
)

const sampleDSL = `
// collections datamodel
entity items = 57 {
  idno idno sort idno_sort
  type type_id
  access access
  deleted deleted
  labels item_labels
  self items_x_items
  reference collection_id @collections
}

entity tags = 58 { idno idno; type type_id }

entity collections = 13 {
  key collection_id
}

entity notes = 90 {
  polymorphic table_num row_id
}

labels item_labels {
  display name
  locale locale
  preferred is_preferred
}

link items_x_tags = 101 {
  left items item_id
  right tags tag_id
  type type_id
  rank rank
  effective_date sdatetime edatetime
  source_info source_info
  primary is_primary
}

link items_x_items = 102 {
  left items item_left_id
  right items item_right_id
  type type_id
}
`

func TestParser_SimpleEntity(t *testing.T) {
	input := `entity items = 57 {}`

	parser := NewParser(NewLexer(input))

	model, err := parser.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(model.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(model.Entities))
	}

	if model.Entities[0].Name != "items" || model.Entities[0].Number != 57 {
		t.Errorf("expected entity items = 57, got %s = %d", model.Entities[0].Name, model.Entities[0].Number)
	}
}

func TestParser_CompleteDatamodel(t *testing.T) {
	parser := NewParser(NewLexer(sampleDSL))

	model, err := parser.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(model.Entities) != 4 {
		t.Fatalf("expected 4 entities, got %d", len(model.Entities))
	}
	if len(model.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(model.Links))
	}
	if len(model.Labels) != 1 {
		t.Fatalf("expected 1 labels block, got %d", len(model.Labels))
	}

	items := model.Entities[0]
	if items.Idno != "idno" || items.IdnoSort != "idno_sort" {
		t.Errorf("expected idno idno sort idno_sort, got %s / %s", items.Idno, items.IdnoSort)
	}
	if items.Labels != "item_labels" || items.Self != "items_x_items" {
		t.Errorf("expected labels and self link, got %q / %q", items.Labels, items.Self)
	}
	if len(items.References) != 1 || items.References[0].Field != "collection_id" || items.References[0].Table != "collections" {
		t.Errorf("unexpected references: %+v", items.References)
	}

	tags := model.Entities[1]
	if tags.Idno != "idno" || tags.Type != "type_id" {
		t.Errorf("semicolon separated directives not parsed: %+v", tags)
	}

	notes := model.Entities[3]
	if notes.Polymorphic == nil || notes.Polymorphic.TableNumField != "table_num" || notes.Polymorphic.RowIDField != "row_id" {
		t.Errorf("unexpected polymorphic directive: %+v", notes.Polymorphic)
	}

	link := model.Links[0]
	if link.LeftTable != "items" || link.LeftField != "item_id" || link.RightTable != "tags" || link.RightField != "tag_id" {
		t.Errorf("unexpected link sides: %+v", link)
	}
	if link.EffectiveStart != "sdatetime" || link.EffectiveEnd != "edatetime" || link.Primary != "is_primary" {
		t.Errorf("unexpected link directives: %+v", link)
	}

	if model.Labels[0].Preferred != "is_preferred" {
		t.Errorf("expected preferred is_preferred, got %q", model.Labels[0].Preferred)
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "missing table number",
			input:   `entity items { }`,
			wantMsg: "expected next token to be =",
		},
		{
			name:    "non numeric table number",
			input:   `entity items = abc { }`,
			wantMsg: "must be a positive integer",
		},
		{
			name:    "missing closing brace",
			input:   `entity items = 57 { idno idno`,
			wantMsg: "expected '}' at end of entity",
		},
		{
			name:    "unknown directive",
			input:   `entity items = 57 { colour red }`,
			wantMsg: `unknown entity directive "colour"`,
		},
		{
			name:    "reference without @",
			input:   `entity items = 57 { reference collection_id collections }`,
			wantMsg: "expected next token to be @",
		},
		{
			name:    "link side missing field",
			input:   `link items_x_tags = 101 { left items }`,
			wantMsg: "expected next token to be IDENTIFIER",
		},
		{
			name:    "stray top level token",
			input:   `items`,
			wantMsg: "expected 'entity', 'link' or 'labels'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(NewLexer(tt.input)).Parse()
			if err == nil {
				t.Fatal("expected parse error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestParser_RecoversAfterBadBlock(t *testing.T) {
	input := `entity items = abc { idno idno }
entity tags = 58 { idno idno }`

	parser := NewParser(NewLexer(input))
	_, err := parser.Parse()
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
	if strings.Count(err.Error(), "\n") != 1 {
		t.Errorf("expected exactly one error, got: %v", err)
	}
}

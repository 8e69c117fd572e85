package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses the datamodel DSL into an AST
type Parser struct {
	lexer   *Lexer
	current *Token
	peek    *Token
	errors  []string
}

// NewParser creates a new Parser
func NewParser(lexer *Lexer) *Parser {
	p := &Parser{
		lexer:  lexer,
		errors: []string{},
	}

	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.current = p.peek
	tok, err := p.lexer.NextToken()
	if err != nil {
		p.errors = append(p.errors, err.Error())
		p.peek = &Token{Type: TOKEN_EOF}
	} else {
		p.peek = tok
	}
}

func (p *Parser) currentTokenIs(t TokenType) bool {
	return p.current != nil && p.current.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peek != nil && p.peek.Type == t
}

// expectPeek checks if the next token is of the expected type and advances
func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t TokenType) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead at %d:%d",
		tokenNames[t], tokenNames[p.peek.Type], p.peek.Line, p.peek.Column)
	p.errors = append(p.errors, msg)
}

// expectIdentifier advances to the next identifier and returns its value
func (p *Parser) expectIdentifier() (string, bool) {
	if !p.expectPeek(TOKEN_IDENTIFIER) {
		return "", false
	}
	return p.current.Value, true
}

// Parse parses the entire datamodel
func (p *Parser) Parse() (*DatamodelAST, error) {
	model := &DatamodelAST{
		Entities: []*EntityAST{},
		Links:    []*LinkAST{},
		Labels:   []*LabelsAST{},
	}

	for !p.currentTokenIs(TOKEN_EOF) {
		switch {
		case p.currentTokenIs(TOKEN_ENTITY):
			if entity := p.parseEntity(); entity != nil {
				model.Entities = append(model.Entities, entity)
			} else {
				p.skipBlock()
			}
		case p.currentTokenIs(TOKEN_LINK):
			if link := p.parseLink(); link != nil {
				model.Links = append(model.Links, link)
			} else {
				p.skipBlock()
			}
		case p.currentTokenIs(TOKEN_LABELS):
			if labels := p.parseLabels(); labels != nil {
				model.Labels = append(model.Labels, labels)
			} else {
				p.skipBlock()
			}
		default:
			p.errors = append(p.errors, fmt.Sprintf("unexpected token %s at %d:%d, expected 'entity', 'link' or 'labels'",
				tokenNames[p.current.Type], p.current.Line, p.current.Column))
			p.nextToken()
		}
	}

	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parse errors:\n%s", strings.Join(p.errors, "\n"))
	}

	return model, nil
}

// skipBlock skips to the token after the next '}' so one bad block does not hide the rest
func (p *Parser) skipBlock() {
	for !p.currentTokenIs(TOKEN_RBRACE) && !p.currentTokenIs(TOKEN_EOF) {
		p.nextToken()
	}
	if p.currentTokenIs(TOKEN_RBRACE) {
		p.nextToken()
	}
}

// parseHeader parses "NAME [= NUMBER] {" and leaves the parser on the first body token
func (p *Parser) parseHeader(numbered bool) (string, int, bool) {
	name, ok := p.expectIdentifier()
	if !ok {
		return "", 0, false
	}

	number := 0
	if numbered {
		if !p.expectPeek(TOKEN_EQUALS) {
			return "", 0, false
		}
		raw, ok := p.expectIdentifier()
		if !ok {
			return "", 0, false
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			p.errors = append(p.errors, fmt.Sprintf("table number for %s must be a positive integer, got %q at %d:%d",
				name, raw, p.current.Line, p.current.Column))
			return "", 0, false
		}
		number = n
	}

	if !p.expectPeek(TOKEN_LBRACE) {
		return "", 0, false
	}
	p.nextToken()
	return name, number, true
}

// parseArgs reads n identifiers following the current directive token
func (p *Parser) parseArgs(n int) ([]string, bool) {
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v, ok := p.expectIdentifier()
		if !ok {
			return nil, false
		}
		args = append(args, v)
	}
	return args, true
}

// finishDirective moves past the directive's last argument and any separators
func (p *Parser) finishDirective() {
	p.nextToken()
	for p.currentTokenIs(TOKEN_SEMICOLON) {
		p.nextToken()
	}
}

// closeBlock expects the closing brace of a block
func (p *Parser) closeBlock(kind string) bool {
	if !p.currentTokenIs(TOKEN_RBRACE) {
		p.errors = append(p.errors, fmt.Sprintf("expected '}' at end of %s, got %s at %d:%d",
			kind, tokenNames[p.current.Type], p.current.Line, p.current.Column))
		return false
	}
	p.nextToken()
	return true
}

func (p *Parser) unknownDirective(kind string) {
	p.errors = append(p.errors, fmt.Sprintf("unknown %s directive %q at %d:%d",
		kind, p.current.Value, p.current.Line, p.current.Column))
	p.nextToken()
}

// parseEntity parses an entity block
func (p *Parser) parseEntity() *EntityAST {
	line := p.current.Line
	name, number, ok := p.parseHeader(true)
	if !ok {
		return nil
	}
	entity := &EntityAST{Name: name, Number: number, References: []*ReferenceAST{}, Line: line}

	for !p.currentTokenIs(TOKEN_RBRACE) && !p.currentTokenIs(TOKEN_EOF) {
		if p.currentTokenIs(TOKEN_SEMICOLON) {
			p.nextToken()
			continue
		}
		if !p.currentTokenIs(TOKEN_IDENTIFIER) && !p.currentTokenIs(TOKEN_LABELS) {
			p.errors = append(p.errors, fmt.Sprintf("unexpected token %s in entity at %d:%d",
				tokenNames[p.current.Type], p.current.Line, p.current.Column))
			p.nextToken()
			continue
		}

		var target *string
		switch p.current.Value {
		case "key":
			target = &entity.Key
		case "type":
			target = &entity.Type
		case "access":
			target = &entity.Access
		case "deleted":
			target = &entity.Deleted
		case "labels":
			target = &entity.Labels
		case "self":
			target = &entity.Self
		case "idno":
			args, ok := p.parseArgs(1)
			if !ok {
				return nil
			}
			entity.Idno = args[0]
			if p.peekTokenIs(TOKEN_IDENTIFIER) && p.peek.Value == "sort" {
				p.nextToken()
				sortField, ok := p.expectIdentifier()
				if !ok {
					return nil
				}
				entity.IdnoSort = sortField
			}
			p.finishDirective()
			continue
		case "reference":
			field, ok := p.expectIdentifier()
			if !ok {
				return nil
			}
			if !p.expectPeek(TOKEN_AT) {
				return nil
			}
			table, ok := p.expectIdentifier()
			if !ok {
				return nil
			}
			entity.References = append(entity.References, &ReferenceAST{Field: field, Table: table})
			p.finishDirective()
			continue
		case "polymorphic":
			args, ok := p.parseArgs(2)
			if !ok {
				return nil
			}
			entity.Polymorphic = &PolymorphicAST{TableNumField: args[0], RowIDField: args[1]}
			p.finishDirective()
			continue
		default:
			p.unknownDirective("entity")
			continue
		}

		args, ok := p.parseArgs(1)
		if !ok {
			return nil
		}
		*target = args[0]
		p.finishDirective()
	}

	if !p.closeBlock("entity") {
		return nil
	}
	return entity
}

// parseLink parses a link block
func (p *Parser) parseLink() *LinkAST {
	line := p.current.Line
	name, number, ok := p.parseHeader(true)
	if !ok {
		return nil
	}
	link := &LinkAST{Name: name, Number: number, Line: line}

	for !p.currentTokenIs(TOKEN_RBRACE) && !p.currentTokenIs(TOKEN_EOF) {
		if p.currentTokenIs(TOKEN_SEMICOLON) {
			p.nextToken()
			continue
		}
		if !p.currentTokenIs(TOKEN_IDENTIFIER) {
			p.errors = append(p.errors, fmt.Sprintf("unexpected token %s in link at %d:%d",
				tokenNames[p.current.Type], p.current.Line, p.current.Column))
			p.nextToken()
			continue
		}

		var targets []*string
		switch p.current.Value {
		case "key":
			targets = []*string{&link.Key}
		case "left":
			targets = []*string{&link.LeftTable, &link.LeftField}
		case "right":
			targets = []*string{&link.RightTable, &link.RightField}
		case "type":
			targets = []*string{&link.Type}
		case "rank":
			targets = []*string{&link.Rank}
		case "effective_date":
			targets = []*string{&link.EffectiveStart, &link.EffectiveEnd}
		case "source_info":
			targets = []*string{&link.SourceInfo}
		case "primary":
			targets = []*string{&link.Primary}
		default:
			p.unknownDirective("link")
			continue
		}

		args, ok := p.parseArgs(len(targets))
		if !ok {
			return nil
		}
		for i, t := range targets {
			*t = args[i]
		}
		p.finishDirective()
	}

	if !p.closeBlock("link") {
		return nil
	}
	return link
}

// parseLabels parses a labels block
func (p *Parser) parseLabels() *LabelsAST {
	line := p.current.Line
	name, _, ok := p.parseHeader(false)
	if !ok {
		return nil
	}
	labels := &LabelsAST{Name: name, Line: line}

	for !p.currentTokenIs(TOKEN_RBRACE) && !p.currentTokenIs(TOKEN_EOF) {
		if p.currentTokenIs(TOKEN_SEMICOLON) {
			p.nextToken()
			continue
		}
		if !p.currentTokenIs(TOKEN_IDENTIFIER) {
			p.errors = append(p.errors, fmt.Sprintf("unexpected token %s in labels at %d:%d",
				tokenNames[p.current.Type], p.current.Line, p.current.Column))
			p.nextToken()
			continue
		}

		var target *string
		switch p.current.Value {
		case "key":
			target = &labels.Key
		case "owner":
			target = &labels.Owner
		case "display":
			target = &labels.Display
		case "locale":
			target = &labels.Locale
		case "preferred":
			target = &labels.Preferred
		default:
			p.unknownDirective("labels")
			continue
		}

		args, ok := p.parseArgs(1)
		if !ok {
			return nil
		}
		*target = args[0]
		p.finishDirective()
	}

	if !p.closeBlock("labels") {
		return nil
	}
	return labels
}

package related

import (
	"context"
	"fmt"
	"strings"

	"github.com/asakaida/relata/internal/entities"
	"golang.org/x/text/language"
)

// loadLabels sets the label of each item of table in the request locale.
// Items without a label in that locale get the closest match, or their first label.
func (s *Service) loadLabels(ctx context.Context, table string, items []*entities.RelatedItem, opts *Options) error {
	def := s.resolver.Graph().Labels(table)
	if def == nil || len(items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if it.Table == table {
			ids = append(ids, it.ItemID)
		}
	}

	d := s.query.Dialect()
	cond, args := d.In(d.Quote(def.OwnerField), ids)
	query := fmt.Sprintf("SELECT %s, %s, %s",
		d.Quote(def.OwnerField), d.Quote(def.DisplayField), d.Quote(def.LocaleField))
	if def.PreferredField != "" {
		query += ", " + d.Quote(def.PreferredField)
	}
	query += fmt.Sprintf(" FROM %s WHERE %s", d.Quote(def.Name), cond)
	if def.PreferredField != "" && !opts.ReturnNonPreferredLabels {
		query += " AND " + d.Quote(def.PreferredField) + " = 1"
	}
	query += " ORDER BY " + d.Quote(def.Key)

	rows, err := s.query.Select(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load %s labels: %w", table, err)
	}

	byOwner := make(map[int64][]entities.Label)
	for _, row := range rows {
		owner := row.Int64(def.OwnerField)
		byOwner[owner] = append(byOwner[owner], entities.Label{
			Text:      row.String(def.DisplayField),
			Locale:    row.String(def.LocaleField),
			Preferred: def.PreferredField == "" || row.Bool(def.PreferredField),
		})
	}

	want := s.locales(ctx, opts)
	for _, it := range items {
		labels := byOwner[it.ItemID]
		if it.Table != table || len(labels) == 0 {
			continue
		}
		best := labels[pickLabel(labels, want)]
		it.Label = best.Text
		it.Locale = best.Locale
		if opts.UseLocaleCodes {
			it.Locale = parseLocale(best.Locale).String()
		}
		if opts.ReturnLabelsAsArray {
			it.Labels = labels
		}
	}
	return nil
}

// locales returns the requested locales, most specific first
func (s *Service) locales(ctx context.Context, opts *Options) []language.Tag {
	var tags []language.Tag
	for _, l := range []string{opts.Locale, entities.ScopeFromContext(ctx).Locale, s.cfg.DefaultLocale} {
		if l == "" {
			continue
		}
		if t := parseLocale(l); t != language.Und {
			tags = append(tags, t)
		}
	}
	return tags
}

// pickLabel returns the index of the label closest to the wanted locales
func pickLabel(labels []entities.Label, want []language.Tag) int {
	if len(labels) == 1 || len(want) == 0 {
		return 0
	}
	supported := make([]language.Tag, len(labels))
	for i, l := range labels {
		supported[i] = parseLocale(l.Locale)
	}
	_, index, conf := language.NewMatcher(supported).Match(want...)
	if conf == language.No {
		return 0
	}
	return index
}

// parseLocale accepts both en_US and en-US spellings
func parseLocale(locale string) language.Tag {
	t, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.Und
	}
	return t
}

package postgres

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"sqlcap/internal/core/apperror"
	"sqlcap/internal/core/query"
)

// builder returns a squirrel builder with PostgreSQL placeholder format.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// buildSelect builds the SELECT statement for all read variants. Columns
// come from the record type's "db" tags in declaration order, so the SQL
// text is deterministic per record type.
func buildSelect(d query.Descriptor) (string, []any, error) {
	cols := columnsOfType(d.RecordType())
	if len(cols) == 0 {
		return "", nil, apperror.NewValidation(fmt.Sprintf("record type %s has no db tags", d.RecordType().Name()))
	}

	b := builder().
		Select(cols...).
		From(d.Table())

	switch d.Op() {
	case query.OpGet, query.OpGetOrErr, query.OpGetEntity, query.OpGetEntityOrErr:
		b = b.Where(squirrel.Eq{"id": d.Key()}).Limit(1)

	case query.OpGetMany:
		b = b.Where(squirrel.Eq{"id": d.Keys()})

	case query.OpGetBy, query.OpGetByOrErr:
		var err error
		b, err = applyFilters(b, cols, d.Filters())
		if err != nil {
			return "", nil, err
		}
		b = b.Limit(1)

	case query.OpSelectList:
		var err error
		b, err = applyFilters(b, cols, d.Filters())
		if err != nil {
			return "", nil, err
		}
		b = applyOptions(b, d.Options())

	default:
		return "", nil, apperror.NewValidation(fmt.Sprintf("%s is not a select variant", d.Op()))
	}

	return b.ToSql()
}

// applyFilters translates filters into WHERE conditions. Field names are
// checked against the record's columns so a typo fails loudly instead of
// producing a backend syntax error.
func applyFilters(b squirrel.SelectBuilder, cols []string, filters []query.Filter) (squirrel.SelectBuilder, error) {
	known := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		known[c] = struct{}{}
	}

	for _, f := range filters {
		if _, ok := known[f.Field]; !ok {
			return b, apperror.NewValidation(fmt.Sprintf("unknown filter field: %s", f.Field))
		}

		switch f.Operator {
		case query.Equal, "":
			b = b.Where(squirrel.Eq{f.Field: f.Value})
		case query.NotEqual:
			b = b.Where(squirrel.NotEq{f.Field: f.Value})
		case query.Less:
			b = b.Where(squirrel.Lt{f.Field: f.Value})
		case query.LessOrEqual:
			b = b.Where(squirrel.LtOrEq{f.Field: f.Value})
		case query.Greater:
			b = b.Where(squirrel.Gt{f.Field: f.Value})
		case query.GreaterOrEqual:
			b = b.Where(squirrel.GtOrEq{f.Field: f.Value})
		case query.InList:
			b = b.Where(squirrel.Eq{f.Field: f.Value})
		case query.NotInList:
			b = b.Where(squirrel.NotEq{f.Field: f.Value})
		case query.Contains:
			pattern := "%" + fmt.Sprintf("%v", f.Value) + "%"
			b = b.Where(squirrel.ILike{f.Field: pattern})
		case query.IsNull:
			b = b.Where(squirrel.Eq{f.Field: nil})
		case query.IsNotNull:
			b = b.Where(squirrel.NotEq{f.Field: nil})
		default:
			return b, apperror.NewValidation(fmt.Sprintf("unsupported filter operator: %s", f.Operator))
		}
	}

	return b, nil
}

func applyOptions(b squirrel.SelectBuilder, opts query.SelectOptions) squirrel.SelectBuilder {
	for _, o := range opts.Orders {
		if o.Descending {
			b = b.OrderBy(o.Field + " DESC")
		} else {
			b = b.OrderBy(o.Field)
		}
	}
	if opts.Limit > 0 {
		b = b.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		b = b.Offset(opts.Offset)
	}
	return b
}

// buildInsert builds a multi-row INSERT for the given column order.
func buildInsert(table string, cols []string, rows [][]any) (string, []any, error) {
	b := builder().
		Insert(table).
		Columns(cols...)
	for _, row := range rows {
		b = b.Values(row...)
	}
	return b.ToSql()
}

// buildRepsert builds INSERT .. ON CONFLICT (id) DO UPDATE, overwriting
// every non-key column with the incoming value.
func buildRepsert(table string, cols []string, row []any) (string, []any, error) {
	assignments := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == "id" {
			continue
		}
		assignments = append(assignments, c+" = EXCLUDED."+c)
	}
	if len(assignments) == 0 {
		return "", nil, apperror.NewValidation("repsert needs at least one non-key column")
	}

	b := builder().
		Insert(table).
		Columns(cols...).
		Values(row...).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(assignments, ", "))
	return b.ToSql()
}

// buildReplace builds a full-row UPDATE by key.
func buildReplace(table string, cols []string, data map[string]any, key query.Key) (string, []any, error) {
	b := builder().Update(table)
	set := 0
	for _, c := range cols {
		if c == "id" {
			continue
		}
		if v, ok := data[c]; ok {
			b = b.Set(c, v)
			set++
		}
	}
	if set == 0 {
		return "", nil, apperror.NewValidation("replace needs at least one non-key column")
	}
	b = b.Where(squirrel.Eq{"id": key})
	return b.ToSql()
}

// buildDelete builds a DELETE by key.
func buildDelete(table string, key query.Key) (string, []any, error) {
	return builder().
		Delete(table).
		Where(squirrel.Eq{"id": key}).
		ToSql()
}

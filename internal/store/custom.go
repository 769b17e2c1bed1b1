package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/hive/internal/wire"
	"github.com/mesh-intelligence/hive/pkg/types"
)

// FieldTimeLayout renders time columns returned by the driver.
const FieldTimeLayout = "2006-01-02 15:04:05"

// CustomSource runs caller-supplied SQL templates with ? placeholders.
type CustomSource struct {
	backend *Backend
	log     zerolog.Logger
}

func NewCustomSource(b *Backend, log zerolog.Logger) *CustomSource {
	return &CustomSource{backend: b, log: log}
}

// Populate substitutes the string form of each argument into the matching ?
// of template, runs the resulting query, and yields one list per row.
// Substitution is a single pass: text introduced by an argument is never
// scanned for placeholders.
func (s *CustomSource) Populate(ctx context.Context, template string, args wire.List) iter.Seq2[wire.List, error] {
	return func(yield func(wire.List, error) bool) {
		query, err := substitute(template, args)
		if err != nil {
			yield(nil, err)
			return
		}
		db, err := s.backend.DB()
		if err != nil {
			yield(nil, err)
			return
		}

		s.log.Debug().Str("query", query).Msg("populate")
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			yield(nil, fmt.Errorf("populate query: %w", err))
			return
		}
		defer rows.Close()

		for row, err := range scanRows(rows) {
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// Execute runs template as a cached prepared statement. An argument whose
// string form is an integer binds as int64, anything else binds as text.
func (s *CustomSource) Execute(ctx context.Context, template string, args wire.List) (bool, error) {
	if err := checkTemplate(template, args); err != nil {
		return false, err
	}
	stmt, err := s.backend.Prepare(ctx, template)
	if err != nil {
		return false, fmt.Errorf("execute custom statement: %w", err)
	}

	bound := make([]any, len(args))
	for i, arg := range args {
		bound[i] = bindArg(arg)
	}
	if _, err := stmt.ExecContext(ctx, bound...); err != nil {
		return false, fmt.Errorf("execute custom statement: %w", err)
	}
	return true, nil
}

func checkTemplate(template string, args wire.List) error {
	if strings.TrimSpace(template) == "" {
		return types.ErrEmptyTemplate
	}
	if n := placeholders(template); n != len(args) {
		return fmt.Errorf("template has %d placeholders, got %d arguments: %w", n, len(args), types.ErrArityMismatch)
	}
	return nil
}

func substitute(template string, args wire.List) (string, error) {
	if err := checkTemplate(template, args); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len(template))
	next := 0
	for i := 0; i < len(template); i++ {
		if template[i] != '?' {
			sb.WriteByte(template[i])
			continue
		}
		sb.WriteString(wire.StringAny(args[next]))
		next++
	}
	return sb.String(), nil
}

func bindArg(v wire.Value) any {
	form := wire.StringAny(v)
	if n, err := strconv.ParseInt(form, 10, 64); err == nil && strconv.FormatInt(n, 10) == form {
		return n
	}
	return form
}

// scanRows converts every column of every row with fieldValue.
func scanRows(rows *sql.Rows) iter.Seq2[wire.List, error] {
	return func(yield func(wire.List, error) bool) {
		cols, err := rows.Columns()
		if err != nil {
			yield(nil, fmt.Errorf("read columns: %w", err))
			return
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}

		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				yield(nil, fmt.Errorf("scan row: %w", err))
				return
			}
			row := make(wire.List, len(cols))
			for i, v := range vals {
				row[i] = fieldValue(v)
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate rows: %w", err))
		}
	}
}

// fieldValue types a column the way the caller expects: a field whose text
// is a base-10 integer becomes an integer, except a zero spelled other than
// "0". Everything else stays a string.
func fieldValue(v any) wire.Value {
	text := fieldText(v)
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil || (n == 0 && text != "0") {
		return wire.String(text)
	}
	return wire.Integer(n)
}

func fieldText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(FieldTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}

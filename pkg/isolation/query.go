package isolation

import "strings"

// Query is a SQL statement plus its bind arguments. Providers rewrite
// queries through ApplyFilter so strategies that isolate inside shared
// tables can append their tenant predicate.
type Query struct {
	SQL  string
	Args []any
}

// NewQuery builds a Query.
func NewQuery(sql string, args ...any) Query {
	return Query{SQL: sql, Args: args}
}

// Where appends a condition, using WHERE or AND depending on whether the
// statement already carries a WHERE clause. Placeholders in cond must
// continue the query's $n numbering; NextArg gives the right index.
func (q Query) Where(cond string, args ...any) Query {
	kw := " WHERE "
	if containsWhere(q.SQL) {
		kw = " AND "
	}
	return Query{
		SQL:  q.SQL + kw + cond,
		Args: append(append([]any{}, q.Args...), args...),
	}
}

// NextArg returns the positional placeholder index for the next appended
// argument.
func (q Query) NextArg() int {
	return len(q.Args) + 1
}

func containsWhere(sql string) bool {
	upper := strings.ToUpper(sql)
	for idx := 0; ; {
		pos := strings.Index(upper[idx:], "WHERE")
		if pos == -1 {
			return false
		}
		pos += idx
		// Token boundaries only, so column names like "wherever" don't count.
		boundedLeft := pos == 0 || !isWordByte(upper[pos-1])
		end := pos + len("WHERE")
		boundedRight := end == len(upper) || !isWordByte(upper[end])
		if boundedLeft && boundedRight {
			return true
		}
		idx = end
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

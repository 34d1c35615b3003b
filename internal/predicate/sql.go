// internal/predicate/sql.go
package predicate

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// SQLPrefilter renders the predicate as a WHERE fragment so the catalog query
// pushes the constraints down to indexed columns instead of scanning. argIndex
// is the next free $n placeholder; the returned clauses are ANDed by the caller.
func (p *Predicate) SQLPrefilter(argIndex int) (clauses []string, args []interface{}) {
	for _, c := range p.Conditions {
		switch cond := c.(type) {
		case PhaseEquals:
			clauses = append(clauses, fmt.Sprintf("phase = $%d", argIndex))
			args = append(args, cond.Phase)
			argIndex++
		case PhaseIn:
			clauses = append(clauses, fmt.Sprintf("phase = ANY($%d)", argIndex))
			args = append(args, pq.Array(cond.Phases))
			argIndex++
		case MarketCapRange:
			if cond.Min != nil {
				clauses = append(clauses, fmt.Sprintf("market_cap >= $%d", argIndex))
				args = append(args, *cond.Min)
				argIndex++
			}
			if cond.Max != nil {
				clauses = append(clauses, fmt.Sprintf("market_cap <= $%d", argIndex))
				args = append(args, *cond.Max)
				argIndex++
			}
		case MinEnrollment:
			clauses = append(clauses, fmt.Sprintf("enrollment >= $%d", argIndex))
			args = append(args, cond.Min)
			argIndex++
		case IndicationContains:
			clauses = append(clauses, fmt.Sprintf("indication ILIKE $%d", argIndex))
			args = append(args, "%"+escapeLike(cond.Substring)+"%")
			argIndex++
		case CompletionDateRange:
			if cond.Start != nil {
				clauses = append(clauses, fmt.Sprintf("completion_date >= $%d", argIndex))
				args = append(args, *cond.Start)
				argIndex++
			}
			if cond.End != nil {
				clauses = append(clauses, fmt.Sprintf("completion_date <= $%d", argIndex))
				args = append(args, *cond.End)
				argIndex++
			}
		}
	}
	return clauses, args
}

// escapeLike neutralizes LIKE metacharacters in user-supplied substrings.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

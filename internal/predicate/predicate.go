// Package predicate implements the structured boolean grammar edges are
// written in: a conjunction of numeric comparisons over the closed
// feature namespace. Free-form proposals are parsed into this grammar or
// rejected, which keeps duplicate detection well defined.
package predicate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// Op is a comparison operator in canonical spelling
type Op string

const (
	OpGT  Op = ">"
	OpGTE Op = ">="
	OpLT  Op = "<"
	OpLTE Op = "<="
	OpEQ  Op = "=="
	OpNEQ Op = "!="
)

// Comparison is one clause: <feature> <op> <number>
type Comparison struct {
	Field string  `json:"field"`
	Op    Op      `json:"op"`
	Value float64 `json:"value"`
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.FormatFloat(c.Value, 'g', -1, 64))
}

// holds reports whether the clause is true for the given value.
func (c Comparison) holds(v float64) bool {
	switch c.Op {
	case OpGT:
		return v > c.Value
	case OpGTE:
		return v >= c.Value
	case OpLT:
		return v < c.Value
	case OpLTE:
		return v <= c.Value
	case OpEQ:
		return v == c.Value
	case OpNEQ:
		return v != c.Value
	default:
		return false
	}
}

// Predicate is a conjunction of comparisons. The zero value matches
// nothing; build through Parse or New.
type Predicate struct {
	Comparisons []Comparison `json:"comparisons"`
}

// New builds a predicate from clauses, rejecting unknown fields.
func New(comparisons ...Comparison) (*Predicate, error) {
	if len(comparisons) == 0 {
		return nil, fmt.Errorf("predicate needs at least one comparison")
	}
	for _, c := range comparisons {
		if !models.IsFeatureName(c.Field) {
			return nil, fmt.Errorf("unknown feature %q", c.Field)
		}
	}
	p := &Predicate{Comparisons: append([]Comparison(nil), comparisons...)}
	p.normalize()
	return p, nil
}

// normalize sorts clauses and drops exact duplicates so that logically
// identical predicates share one canonical string.
func (p *Predicate) normalize() {
	sort.Slice(p.Comparisons, func(i, j int) bool {
		a, b := p.Comparisons[i], p.Comparisons[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Op != b.Op {
			return a.Op < b.Op
		}
		return a.Value < b.Value
	})
	deduped := p.Comparisons[:0]
	for i, c := range p.Comparisons {
		if i > 0 && c == p.Comparisons[i-1] {
			continue
		}
		deduped = append(deduped, c)
	}
	p.Comparisons = deduped
}

// Canonical returns the stable string form used for edge identity and
// similarity comparison.
func (p *Predicate) Canonical() string {
	parts := make([]string, len(p.Comparisons))
	for i, c := range p.Comparisons {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}

func (p *Predicate) String() string {
	return p.Canonical()
}

// Evaluate checks the conjunction against a feature vector. Unknown
// fields evaluate false, which cannot happen for parsed predicates.
func (p *Predicate) Evaluate(fv *models.FeatureVector) bool {
	if len(p.Comparisons) == 0 {
		return false
	}
	for _, c := range p.Comparisons {
		v, ok := fv.Field(c.Field)
		if !ok || !c.holds(v) {
			return false
		}
	}
	return true
}

// Fields returns the distinct feature names the predicate touches.
func (p *Predicate) Fields() []string {
	seen := make(map[string]bool, len(p.Comparisons))
	var fields []string
	for _, c := range p.Comparisons {
		if !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	}
	return fields
}

// Conjoin merges two predicates into their conjunction. Used by
// interaction mining; contradictory conjunctions simply match nothing
// and fall out at the support filter.
func Conjoin(a, b *Predicate) *Predicate {
	merged := &Predicate{
		Comparisons: append(append([]Comparison(nil), a.Comparisons...), b.Comparisons...),
	}
	merged.normalize()
	return merged
}

// standardizeOperators rewrites the operator variants proposals arrive
// with into canonical spellings.
var operatorReplacer = strings.NewReplacer(
	"∧", "&&",
	" and ", " && ",
	" AND ", " && ",
	"≥", ">=",
	"≤", "<=",
	"=>", ">=",
	"=<", "<=",
)

// Parse turns a predicate string into the structured grammar. It accepts
// the operator variants reasoning models tend to emit and fails on
// anything outside the closed namespace.
func Parse(input string) (*Predicate, error) {
	s := strings.TrimSpace(operatorReplacer.Replace(input))
	if s == "" {
		return nil, fmt.Errorf("empty predicate")
	}

	clauses := strings.Split(s, "&&")
	comparisons := make([]Comparison, 0, len(clauses))
	for _, raw := range clauses {
		c, err := parseClause(raw)
		if err != nil {
			return nil, err
		}
		comparisons = append(comparisons, c)
	}
	return New(comparisons...)
}

// two-character operators must be matched before their one-character
// prefixes.
var opOrder = []Op{OpGTE, OpLTE, OpEQ, OpNEQ, OpGT, OpLT}

func parseClause(raw string) (Comparison, error) {
	clause := strings.TrimSpace(raw)
	if clause == "" {
		return Comparison{}, fmt.Errorf("empty clause")
	}

	for _, op := range opOrder {
		idx := strings.Index(clause, string(op))
		if idx < 0 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(clause[:idx]))
		valueText := strings.TrimSpace(clause[idx+len(op):])
		if field == "" || valueText == "" {
			return Comparison{}, fmt.Errorf("malformed clause %q", clause)
		}
		value, err := strconv.ParseFloat(valueText, 64)
		if err != nil {
			return Comparison{}, fmt.Errorf("clause %q: value %q is not numeric", clause, valueText)
		}
		return Comparison{Field: field, Op: op, Value: value}, nil
	}

	// A bare "=" that is not part of ==, >=, <= or != is accepted as
	// equality since proposals frequently use it.
	if idx := strings.Index(clause, "="); idx > 0 {
		field := strings.ToLower(strings.TrimSpace(clause[:idx]))
		valueText := strings.TrimSpace(clause[idx+1:])
		value, err := strconv.ParseFloat(valueText, 64)
		if err != nil {
			return Comparison{}, fmt.Errorf("clause %q: value %q is not numeric", clause, valueText)
		}
		return Comparison{Field: field, Op: OpEQ, Value: value}, nil
	}

	return Comparison{}, fmt.Errorf("clause %q has no comparison operator", clause)
}

// Package authz holds the declarative permission model: requirements
// attached to protected operations, the evaluator that checks them
// against a user's cached permission set, the resolver that derives the
// set from the role/permission graph, and the propagator that rewrites
// cached sets when the graph changes.
package authz

// Logic selects how the codes within a clause combine.
type Logic int

const (
	// LogicAnd requires every code in the clause.
	LogicAnd Logic = iota
	// LogicOr requires at least one code in the clause.
	LogicOr
)

// Clause is one permission rule: a non-empty set of codes combined with
// AND or OR.
type Clause struct {
	Codes []string
	Logic Logic
}

// Requirement is an ordered sequence of clauses, implicitly ANDed with
// each other. A requirement with no clauses is vacuously satisfied: the
// operation is unprotected.
type Requirement []Clause

// All starts a requirement whose first clause requires every given code.
func All(codes ...string) Requirement {
	return Requirement{{Codes: codes, Logic: LogicAnd}}
}

// Any starts a requirement whose first clause requires at least one of
// the given codes.
func Any(codes ...string) Requirement {
	return Requirement{{Codes: codes, Logic: LogicOr}}
}

// AndAll appends an AND clause over the given codes.
func (r Requirement) AndAll(codes ...string) Requirement {
	return append(r, Clause{Codes: codes, Logic: LogicAnd})
}

// AndAny appends an OR clause over the given codes.
func (r Requirement) AndAny(codes ...string) Requirement {
	return append(r, Clause{Codes: codes, Logic: LogicOr})
}

// SatisfiedBy evaluates the requirement against the granted permission
// codes. Evaluation stops at the first failing clause.
func (r Requirement) SatisfiedBy(granted []string) bool {
	if len(r) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, code := range granted {
		set[code] = struct{}{}
	}
	for _, clause := range r {
		if !clause.satisfiedBy(set) {
			return false
		}
	}
	return true
}

func (c Clause) satisfiedBy(granted map[string]struct{}) bool {
	if c.Logic == LogicOr {
		for _, code := range c.Codes {
			if _, ok := granted[code]; ok {
				return true
			}
		}
		return false
	}
	for _, code := range c.Codes {
		if _, ok := granted[code]; !ok {
			return false
		}
	}
	return true
}

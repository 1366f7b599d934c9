// Package guards holds the pure predicates that gate transitions. Guards never
// touch storage or the network; the caller gathers everything up front.
package guards

// Result is a guard decision. Code is the machine-readable skip reason.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Code    string `json:"code,omitempty"`
	Guard   string `json:"guard,omitempty"`
}

func Allow() Result {
	return Result{Allowed: true}
}

func Deny(code, reason string) Result {
	return Result{Code: code, Reason: reason}
}

// Guard is a named predicate over a context value.
type Guard[C any] struct {
	Name  string
	Check func(C) Result
}

// Set is an ordered list of guards evaluated with short-circuit on the first denial.
type Set[C any] struct {
	name   string
	guards []Guard[C]
}

func NewSet[C any](name string, guards ...Guard[C]) *Set[C] {
	return &Set[C]{name: name, guards: guards}
}

func (s *Set[C]) Name() string { return s.name }

// Names lists the guards in evaluation order.
func (s *Set[C]) Names() []string {
	out := make([]string, len(s.guards))
	for i, g := range s.guards {
		out[i] = g.Name
	}
	return out
}

func (s *Set[C]) Evaluate(ctx C) Result {
	for _, g := range s.guards {
		res := g.Check(ctx)
		if !res.Allowed {
			res.Guard = g.Name
			return res
		}
	}
	return Allow()
}

package saga

import (
	"fmt"
)

// Predicate guards a conditional edge. It reads the run context and reports
// whether the edge should be taken.
type Predicate func(c Context) bool

// Edge routes execution after a step succeeds. Exactly one of To, Done, or
// Reject must be set. Edges are evaluated in declared order; the first match
// wins. A nil When matches unconditionally.
type Edge struct {
	When   Predicate
	To     string // successor step name
	Done   bool   // terminate the run successfully
	Reject string // terminate the run as a validation rejection, with reason
}

// Step is one node of a saga definition.
type Step struct {
	Name string
	// Compensate names the step to run if this step, or any step downstream
	// of it, fails. Empty means the step has nothing to undo.
	Compensate string
	Edges      []Edge
}

// Definition is a validated, immutable graph of steps.
type Definition struct {
	name  string
	start string
	steps map[string]Step
}

// NewDefinition validates the step graph and returns a Definition. It fails
// if the start step is missing, any edge or compensation references an
// unknown step, a step declares no edges, or an edge sets more than one of
// To/Done/Reject.
func NewDefinition(name, start string, steps ...Step) (*Definition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: definition name required", ErrConfiguration)
	}
	byName := make(map[string]Step, len(steps))
	for _, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: step name required", ErrConfiguration)
		}
		if _, ok := byName[s.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate step %q", ErrConfiguration, s.Name)
		}
		byName[s.Name] = s
	}
	if _, ok := byName[start]; !ok {
		return nil, fmt.Errorf("%w: start step %q not defined", ErrConfiguration, start)
	}
	for _, s := range steps {
		if len(s.Edges) == 0 {
			return nil, fmt.Errorf("%w: step %q has no edges", ErrConfiguration, s.Name)
		}
		for i, e := range s.Edges {
			if err := validateEdge(byName, s.Name, i, e); err != nil {
				return nil, err
			}
		}
		if s.Compensate != "" {
			if _, ok := byName[s.Compensate]; !ok {
				return nil, fmt.Errorf("%w: step %q compensation %q not defined", ErrConfiguration, s.Name, s.Compensate)
			}
		}
	}
	return &Definition{name: name, start: start, steps: byName}, nil
}

func validateEdge(byName map[string]Step, step string, idx int, e Edge) error {
	targets := 0
	if e.To != "" {
		targets++
		if _, ok := byName[e.To]; !ok {
			return fmt.Errorf("%w: step %q edge %d targets unknown step %q", ErrConfiguration, step, idx, e.To)
		}
	}
	if e.Done {
		targets++
	}
	if e.Reject != "" {
		targets++
	}
	if targets != 1 {
		return fmt.Errorf("%w: step %q edge %d must set exactly one of To/Done/Reject", ErrConfiguration, step, idx)
	}
	return nil
}

// Name returns the definition name.
func (d *Definition) Name() string { return d.name }

// Start returns the name of the first step.
func (d *Definition) Start() string { return d.start }

// Step looks up a step by name.
func (d *Definition) Step(name string) (Step, bool) {
	s, ok := d.steps[name]
	return s, ok
}

// Steps returns the step names in the definition (unordered).
func (d *Definition) Steps() []string {
	names := make([]string, 0, len(d.steps))
	for name := range d.steps {
		names = append(names, name)
	}
	return names
}

package patch

// Rule is a declarative rewrite over a fixed-width window of a body.
//
// Match sees the whole input body so it can check context outside its
// window; it must not modify it. Rewrite receives a copy of the matched
// window and returns its replacement, which may have a different length.
// Rules hold no state between calls.
type Rule interface {
	Name() string
	Width() int
	Match(body []Instruction, at int) bool
	Rewrite(window []Instruction) []Instruction
}

// Report describes what a pass did.
type Report struct {
	// Hits counts matches per rule name, in rule order.
	Hits  map[string]int
	order []string
}

// Changed reports whether any rule fired.
func (r Report) Changed() bool {
	for _, n := range r.Hits {
		if n > 0 {
			return true
		}
	}
	return false
}

// Missed lists the rules that found no match, in rule order.
func (r Report) Missed() []string {
	var out []string
	for _, name := range r.order {
		if r.Hits[name] == 0 {
			out = append(out, name)
		}
	}
	return out
}

// Apply runs rules over body in one left-to-right pass and returns the new
// body. At each position the first rule (in argument order) whose window fits
// and matches is applied; scanning resumes after the consumed window. The
// input slice is never modified, and a body without any trigger pattern comes
// back equal to the input.
func Apply(body []Instruction, rules ...Rule) ([]Instruction, Report) {
	report := Report{Hits: make(map[string]int, len(rules))}
	for _, rule := range rules {
		if _, seen := report.Hits[rule.Name()]; !seen {
			report.order = append(report.order, rule.Name())
			report.Hits[rule.Name()] = 0
		}
	}

	out := make([]Instruction, 0, len(body))
	for i := 0; i < len(body); {
		consumed := 0
		for _, rule := range rules {
			width := rule.Width()
			if width <= 0 || i+width > len(body) || !rule.Match(body, i) {
				continue
			}
			window := make([]Instruction, width)
			copy(window, body[i:i+width])
			out = append(out, rule.Rewrite(window)...)
			report.Hits[rule.Name()]++
			consumed = width
			break
		}
		if consumed == 0 {
			out = append(out, body[i])
			consumed = 1
		}
		i += consumed
	}
	return out, report
}

// Equal compares two bodies instruction by instruction.
func Equal(a, b []Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

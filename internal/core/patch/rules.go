package patch

import "fmt"

var (
	_ Rule = CallRetarget{}
	_ Rule = OperandBump{}
	_ Rule = BranchNormalize{}
)

// CallRetarget replaces every call to From with a call to To. The call kind
// (static or virtual) is preserved.
type CallRetarget struct {
	From MemberRef
	To   MemberRef
}

func (r CallRetarget) Name() string {
	return fmt.Sprintf("call-retarget(%s->%s)", r.From, r.To)
}

func (r CallRetarget) Width() int { return 1 }

func (r CallRetarget) Match(body []Instruction, at int) bool {
	return body[at].Calls(r.From)
}

func (r CallRetarget) Rewrite(window []Instruction) []Instruction {
	window[0].Operand = r.To
	return window
}

// OperandBump matches a call to Conversion immediately followed by a load of
// the constant From, and rewrites only the constant to To. The call is kept
// as context so unrelated constants are never touched.
type OperandBump struct {
	Conversion MemberRef
	From       int32
	To         int32
}

func (r OperandBump) Name() string {
	return fmt.Sprintf("operand-bump(%s:%d->%d)", r.Conversion, r.From, r.To)
}

func (r OperandBump) Width() int { return 2 }

func (r OperandBump) Match(body []Instruction, at int) bool {
	return body[at].Calls(r.Conversion) && body[at+1].IsLoadConst(r.From)
}

func (r OperandBump) Rewrite(window []Instruction) []Instruction {
	window[1] = window[1].WithConst(r.To)
	return window
}

// BranchNormalize matches a load of the constant Const that sits between a
// load of Field (two instructions earlier) and a call to Predicate (two
// instructions later), and turns the conditional branch right after the
// constant into an unconditional one with the same target.
type BranchNormalize struct {
	Field     MemberRef
	Const     int32
	Predicate MemberRef
}

func (r BranchNormalize) Name() string {
	return fmt.Sprintf("branch-normalize(%s==%d)", r.Field, r.Const)
}

func (r BranchNormalize) Width() int { return 2 }

func (r BranchNormalize) Match(body []Instruction, at int) bool {
	if at < 2 || at+2 >= len(body) {
		return false
	}
	return body[at].IsLoadConst(r.Const) &&
		body[at-2].LoadsField(r.Field) &&
		body[at+2].Calls(r.Predicate) &&
		body[at+1].Op.IsConditionalBranch()
}

func (r BranchNormalize) Rewrite(window []Instruction) []Instruction {
	window[1].Op = OpBr
	return window
}

// Package patch implements a small rewriting pass over abstract method bodies.
//
// A body is a flat []Instruction decoded from the host's listing. Rules look
// at a sliding window of the body (with read access to the surrounding
// instructions for context) and produce a replacement window. Apply runs a
// set of rules left to right in a single pass; replacements are never
// rescanned, so no rule can trigger on its own output. A rule that finds
// nothing leaves the body untouched: the patched surface moves between host
// versions and a missing pattern is a compatibility warning, not an error.
package patch

import (
	"fmt"
	"strings"
)

// Opcode is an abstract operation. The set mirrors the stack-machine
// operations host bodies are made of; only the handful the rules care about
// carry semantics here, the rest pass through untouched.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpLabel
	OpLdarg
	OpLdloc
	OpStloc
	OpLdnull
	OpLdstr
	OpLdcI4
	OpLdcI4S
	OpLdcI4Short
	OpLdfld
	OpLdsfld
	OpStfld
	OpCall
	OpCallvirt
	OpNewobj
	OpBr
	OpBrtrue
	OpBrfalse
	OpBeq
	OpBneUn
	OpBlt
	OpBgt
	OpBle
	OpBge
	OpDup
	OpPop
	OpRet
)

var opcodeNames = map[Opcode]string{
	OpNop:        "nop",
	OpLabel:      "label",
	OpLdarg:      "ldarg",
	OpLdloc:      "ldloc",
	OpStloc:      "stloc",
	OpLdnull:     "ldnull",
	OpLdstr:      "ldstr",
	OpLdcI4:      "ldc.i4",
	OpLdcI4S:     "ldc.i4.s",
	OpLdcI4Short: "ldc.i4.<n>",
	OpLdfld:      "ldfld",
	OpLdsfld:     "ldsfld",
	OpStfld:      "stfld",
	OpCall:       "call",
	OpCallvirt:   "callvirt",
	OpNewobj:     "newobj",
	OpBr:         "br",
	OpBrtrue:     "brtrue",
	OpBrfalse:    "brfalse",
	OpBeq:        "beq",
	OpBneUn:      "bne.un",
	OpBlt:        "blt",
	OpBgt:        "bgt",
	OpBle:        "ble",
	OpBge:        "bge",
	OpDup:        "dup",
	OpPop:        "pop",
	OpRet:        "ret",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// IsBranch reports whether op transfers control to a label operand.
func (op Opcode) IsBranch() bool {
	return op >= OpBr && op <= OpBge
}

// IsConditionalBranch reports whether op is a branch that may fall through.
func (op Opcode) IsConditionalBranch() bool {
	return op > OpBr && op <= OpBge
}

// IsCall covers both static and virtual dispatch.
func (op Opcode) IsCall() bool {
	return op == OpCall || op == OpCallvirt
}

// MemberRef names a method or field as "Owner::Name".
type MemberRef struct {
	Owner string
	Name  string
}

// Member builds a MemberRef.
func Member(owner, name string) MemberRef {
	return MemberRef{Owner: owner, Name: name}
}

// ParseMember splits "Owner::Name". A bare name has no owner.
func ParseMember(s string) MemberRef {
	if idx := strings.LastIndex(s, "::"); idx >= 0 {
		return MemberRef{Owner: s[:idx], Name: s[idx+2:]}
	}
	return MemberRef{Name: s}
}

func (m MemberRef) String() string {
	if m.Owner == "" {
		return m.Name
	}
	return m.Owner + "::" + m.Name
}

func (m MemberRef) IsZero() bool {
	return m.Owner == "" && m.Name == ""
}

// Label is a branch target.
type Label string

// Instruction is one opcode plus its operand. Operand holds a MemberRef for
// calls and field access, an int32 for constants and locals, a Label for
// branches and label markers, a string for ldstr, or nil.
type Instruction struct {
	Op      Opcode
	Operand any
}

func (in Instruction) String() string {
	switch in.Op {
	case OpLabel:
		return fmt.Sprintf("%s:", in.Operand)
	case OpLdcI4Short:
		return fmt.Sprintf("ldc.i4.%d", in.Operand)
	case OpLdstr:
		return fmt.Sprintf("ldstr %q", in.Operand)
	}
	if in.Operand == nil {
		return in.Op.String()
	}
	return fmt.Sprintf("%s %v", in.Op, in.Operand)
}

// Call builds a static call instruction.
func Call(owner, name string) Instruction {
	return Instruction{Op: OpCall, Operand: Member(owner, name)}
}

// LoadField builds an instance field load.
func LoadField(owner, name string) Instruction {
	return Instruction{Op: OpLdfld, Operand: Member(owner, name)}
}

// Branch builds a branch instruction of the given kind.
func Branch(op Opcode, target Label) Instruction {
	return Instruction{Op: op, Operand: target}
}

// Mark builds a label marker.
func Mark(name Label) Instruction {
	return Instruction{Op: OpLabel, Operand: name}
}

// Simple builds an operand-less instruction.
func Simple(op Opcode) Instruction {
	return Instruction{Op: op}
}

// LoadConst picks the most compact encoding for n.
func LoadConst(n int32) Instruction {
	switch {
	case n >= -1 && n <= 8:
		return Instruction{Op: OpLdcI4Short, Operand: n}
	case n >= -128 && n <= 127:
		return Instruction{Op: OpLdcI4S, Operand: n}
	default:
		return Instruction{Op: OpLdcI4, Operand: n}
	}
}

// ConstValue returns the value loaded by any of the small-integer constant
// forms.
func (in Instruction) ConstValue() (int32, bool) {
	switch in.Op {
	case OpLdcI4, OpLdcI4S, OpLdcI4Short:
		v, ok := in.Operand.(int32)
		return v, ok
	}
	return 0, false
}

// IsLoadConst reports whether in loads the constant n, whatever the encoding.
func (in Instruction) IsLoadConst(n int32) bool {
	v, ok := in.ConstValue()
	return ok && v == n
}

// WithConst returns in rewritten to load n. The compact form is kept when the
// new value has one; otherwise the encoding widens.
func (in Instruction) WithConst(n int32) Instruction {
	if _, ok := in.ConstValue(); !ok {
		return in
	}
	out := LoadConst(n)
	if in.Op == OpLdcI4 {
		out.Op = OpLdcI4
	}
	return out
}

// Member returns the MemberRef operand, if any.
func (in Instruction) Member() (MemberRef, bool) {
	m, ok := in.Operand.(MemberRef)
	return m, ok
}

// Calls reports whether in is a call (static or virtual) to target.
func (in Instruction) Calls(target MemberRef) bool {
	if !in.Op.IsCall() {
		return false
	}
	m, ok := in.Member()
	return ok && m == target
}

// LoadsField reports whether in loads field (instance or static).
func (in Instruction) LoadsField(field MemberRef) bool {
	if in.Op != OpLdfld && in.Op != OpLdsfld {
		return false
	}
	m, ok := in.Member()
	return ok && m == field
}

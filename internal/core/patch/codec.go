package patch

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrBadOperand    = errors.New("bad operand")
)

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		if op == OpLabel || op == OpLdcI4Short {
			continue
		}
		m[name] = op
	}
	return m
}()

// Parse decodes a listing, one instruction per line:
//
//	ldarg 0
//	ldfld Verse.Thing::def
//	ldc.i4.3
//	bne.un L1
//	call RimWorld.GenConstruct::CanPlace
//	L1:
//	ret
//
// Blank lines and lines starting with "//" are skipped.
func Parse(listing string) ([]Instruction, error) {
	var body []Instruction
	sc := bufio.NewScanner(strings.NewReader(listing))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		in, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d %q: %w", line, text, err)
		}
		body = append(body, in)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return body, nil
}

// MustParse is Parse for listings known at compile time.
func MustParse(listing string) []Instruction {
	body, err := Parse(listing)
	if err != nil {
		panic(err)
	}
	return body
}

func parseLine(text string) (Instruction, error) {
	if strings.HasSuffix(text, ":") && !strings.ContainsAny(text, " \t") {
		return Mark(Label(strings.TrimSuffix(text, ":"))), nil
	}

	mnemonic, operand, _ := strings.Cut(text, " ")
	operand = strings.TrimSpace(operand)

	if rest, ok := strings.CutPrefix(mnemonic, "ldc.i4."); ok && rest != "s" {
		if rest == "m1" {
			rest = "-1"
		}
		n, err := strconv.ParseInt(rest, 10, 32)
		if err != nil || n < -1 || n > 8 {
			return Instruction{}, fmt.Errorf("%w: %s", ErrUnknownOpcode, mnemonic)
		}
		return Instruction{Op: OpLdcI4Short, Operand: int32(n)}, nil
	}

	op, ok := opcodesByName[mnemonic]
	if !ok {
		return Instruction{}, fmt.Errorf("%w: %s", ErrUnknownOpcode, mnemonic)
	}

	switch {
	case op == OpLdcI4 || op == OpLdcI4S || op == OpLdarg || op == OpLdloc || op == OpStloc:
		n, err := strconv.ParseInt(operand, 10, 32)
		if err != nil {
			return Instruction{}, fmt.Errorf("%w: %s expects an integer", ErrBadOperand, op)
		}
		if op == OpLdcI4S && (n < -128 || n > 127) {
			return Instruction{}, fmt.Errorf("%w: %d does not fit ldc.i4.s", ErrBadOperand, n)
		}
		return Instruction{Op: op, Operand: int32(n)}, nil
	case op.IsCall() || op == OpLdfld || op == OpLdsfld || op == OpStfld || op == OpNewobj:
		if operand == "" {
			return Instruction{}, fmt.Errorf("%w: %s expects a member", ErrBadOperand, op)
		}
		return Instruction{Op: op, Operand: ParseMember(operand)}, nil
	case op.IsBranch():
		if operand == "" {
			return Instruction{}, fmt.Errorf("%w: %s expects a label", ErrBadOperand, op)
		}
		return Instruction{Op: op, Operand: Label(operand)}, nil
	case op == OpLdstr:
		s, err := strconv.Unquote(operand)
		if err != nil {
			return Instruction{}, fmt.Errorf("%w: ldstr expects a quoted string", ErrBadOperand)
		}
		return Instruction{Op: op, Operand: s}, nil
	default:
		if operand != "" {
			return Instruction{}, fmt.Errorf("%w: %s takes no operand", ErrBadOperand, op)
		}
		return Simple(op), nil
	}
}

// Format encodes a body back into listing form; Parse(Format(b)) == b.
func Format(body []Instruction) string {
	var sb strings.Builder
	for _, in := range body {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

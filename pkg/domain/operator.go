package domain

import (
	"fmt"
	"os"
)

// Undefined marks an unused operator slot or edge field.
const Undefined = "undefined"

// OperatorKind identifies an instruction of the operator set.
// The string values are part of the persisted format.
type OperatorKind string

const (
	OpBoolAnd        OperatorKind = "bool_op_and"
	OpBoolOr         OperatorKind = "bool_op_or"
	OpBoolNot        OperatorKind = "bool_op_not"
	OpBoolGtVar      OperatorKind = "bool_op_gt_var"
	OpBoolLtVar      OperatorKind = "bool_op_lt_var"
	OpBoolEqVar      OperatorKind = "bool_op_eq_var"
	OpBoolGtConst    OperatorKind = "bool_op_gt_const"
	OpBoolLtConst    OperatorKind = "bool_op_lt_const"
	OpBoolEqConst    OperatorKind = "bool_op_eq_const"
	OpBoolFileExists OperatorKind = "bool_op_file_exists"

	OpFloatPlusVar     OperatorKind = "float_op_plus_float"
	OpFloatMinusVar    OperatorKind = "float_op_minus_float"
	OpFloatMultVar     OperatorKind = "float_op_mult_float"
	OpFloatDivideVar   OperatorKind = "float_op_divide_float"
	OpFloatPlusConst   OperatorKind = "float_op_plus_const"
	OpFloatMinusConst  OperatorKind = "float_op_minus_const"
	OpFloatMultConst   OperatorKind = "float_op_mult_const"
	OpFloatDivideConst OperatorKind = "float_op_div_by_const"
	OpFloatConstDivide OperatorKind = "float_op_div_const_by"

	OpStringTouchFile  OperatorKind = "string_op_touch_file"
	OpStringCopyFile   OperatorKind = "string_op_copy_file"
	OpStringMoveFile   OperatorKind = "string_op_move_file"
	OpStringDeleteFile OperatorKind = "string_op_delete_file"

	OpWaitSinceLastTime OperatorKind = "wait_since_last_time"
	OpExit              OperatorKind = "exit"
)

// Operand describes how one operator slot is read.
type Operand struct {
	// Kind is the variable kind the slot must resolve to.
	Kind Kind
	// Literal allows a constant of Kind in place of a variable name.
	Literal bool
	// Optional allows the slot to be Undefined.
	Optional bool
}

// Signature lists the slots an operator kind uses. Nil slots must be Undefined.
type Signature struct {
	Input1 *Operand
	Input2 *Operand
	Output *Operand
	// Symbol is used to derive the operator node name.
	Symbol string
}

func slot(kind Kind) *Operand         { return &Operand{Kind: kind} }
func literal(kind Kind) *Operand      { return &Operand{Kind: kind, Literal: true} }
func optionalSlot(kind Kind) *Operand { return &Operand{Kind: kind, Optional: true} }

var signatures = map[OperatorKind]Signature{
	OpBoolAnd:        {Input1: slot(KindBool), Input2: slot(KindBool), Output: slot(KindBool), Symbol: "AND"},
	OpBoolOr:         {Input1: slot(KindBool), Input2: slot(KindBool), Output: slot(KindBool), Symbol: "OR"},
	OpBoolNot:        {Input1: slot(KindBool), Output: slot(KindBool), Symbol: "NOT"},
	OpBoolGtVar:      {Input1: slot(KindFloat), Input2: slot(KindFloat), Output: slot(KindBool), Symbol: "GT"},
	OpBoolLtVar:      {Input1: slot(KindFloat), Input2: slot(KindFloat), Output: slot(KindBool), Symbol: "LT"},
	OpBoolEqVar:      {Input1: slot(KindFloat), Input2: slot(KindFloat), Output: slot(KindBool), Symbol: "EQ"},
	OpBoolGtConst:    {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindBool), Symbol: "GT"},
	OpBoolLtConst:    {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindBool), Symbol: "LT"},
	OpBoolEqConst:    {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindBool), Symbol: "EQ"},
	OpBoolFileExists: {Input1: literal(KindString), Output: slot(KindBool), Symbol: "EXISTS"},

	OpFloatPlusVar:     {Input1: slot(KindFloat), Input2: slot(KindFloat), Output: slot(KindFloat), Symbol: "PLUS"},
	OpFloatMinusVar:    {Input1: slot(KindFloat), Input2: slot(KindFloat), Output: slot(KindFloat), Symbol: "MINUS"},
	OpFloatMultVar:     {Input1: slot(KindFloat), Input2: slot(KindFloat), Output: slot(KindFloat), Symbol: "MULT"},
	OpFloatDivideVar:   {Input1: slot(KindFloat), Input2: slot(KindFloat), Output: slot(KindFloat), Symbol: "DIV"},
	OpFloatPlusConst:   {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindFloat), Symbol: "PLUS"},
	OpFloatMinusConst:  {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindFloat), Symbol: "MINUS"},
	OpFloatMultConst:   {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindFloat), Symbol: "MULT"},
	OpFloatDivideConst: {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindFloat), Symbol: "DIV"},
	OpFloatConstDivide: {Input1: slot(KindFloat), Input2: literal(KindFloat), Output: slot(KindFloat), Symbol: "DIV"},

	OpStringTouchFile:  {Input1: literal(KindString), Symbol: "TOUCH"},
	OpStringCopyFile:   {Input1: literal(KindString), Input2: literal(KindString), Symbol: "COPY"},
	OpStringMoveFile:   {Input1: literal(KindString), Input2: literal(KindString), Symbol: "MOVE"},
	OpStringDeleteFile: {Input1: literal(KindString), Symbol: "DELETE"},

	OpWaitSinceLastTime: {Input1: literal(KindFloat), Output: optionalSlot(KindFloat), Symbol: "WAIT"},
	OpExit:              {Symbol: "exit"},
}

// Signature returns the slot layout of k.
func (k OperatorKind) Signature() (Signature, bool) {
	sig, ok := signatures[k]
	return sig, ok
}

// Valid reports whether k is part of the instruction set.
func (k OperatorKind) Valid() bool {
	_, ok := signatures[k]
	return ok
}

// OperatorKinds returns every known kind.
func OperatorKinds() []OperatorKind {
	kinds := make([]OperatorKind, 0, len(signatures))
	for k := range signatures {
		kinds = append(kinds, k)
	}
	return kinds
}

// Operator is an in-process instruction. Input slots hold variable names or
// literals depending on Kind; Output is a variable name or Undefined.
type Operator struct {
	Kind   OperatorKind
	Input1 string
	Input2 string
	Output string
}

// NewOperator builds an operator, filling empty slots with Undefined.
func NewOperator(kind OperatorKind, input1, input2, output string) Operator {
	orUndefined := func(s string) string {
		if s == "" {
			return Undefined
		}
		return s
	}
	return Operator{
		Kind:   kind,
		Input1: orUndefined(input1),
		Input2: orUndefined(input2),
		Output: orUndefined(output),
	}
}

// Check verifies that every slot the kind needs is filled and every unused
// slot is Undefined. It does not look at variables.
func (o Operator) Check() error {
	sig, ok := o.Kind.Signature()
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperator, o.Kind)
	}
	check := func(slotName, value string, op *Operand) error {
		set := value != "" && value != Undefined
		switch {
		case op == nil && set:
			return fmt.Errorf("%w: %s does not use %s (got %q)", ErrInvalidOperator, o.Kind, slotName, value)
		case op != nil && !set && !op.Optional:
			return fmt.Errorf("%w: %s requires %s", ErrInvalidOperator, o.Kind, slotName)
		}
		return nil
	}
	if err := check("input1", o.Input1, sig.Input1); err != nil {
		return err
	}
	if err := check("input2", o.Input2, sig.Input2); err != nil {
		return err
	}
	return check("output", o.Output, sig.Output)
}

// Name derives the node name of the operator from its parameters.
func (o Operator) Name() string {
	sig, ok := o.Kind.Signature()
	if !ok {
		return string(o.Kind)
	}
	switch o.Kind {
	case OpExit:
		return "exit"
	case OpBoolNot, OpBoolFileExists:
		return fmt.Sprintf("%s=%s_%s", o.Output, sig.Symbol, o.Input1)
	case OpFloatConstDivide:
		return fmt.Sprintf("%s=%s_%s_%s", o.Output, o.Input2, sig.Symbol, o.Input1)
	case OpStringTouchFile, OpStringDeleteFile:
		return fmt.Sprintf("%s_%s", sig.Symbol, o.Input1)
	case OpStringCopyFile, OpStringMoveFile:
		return fmt.Sprintf("%s_%s_TO_%s", sig.Symbol, o.Input1, o.Input2)
	case OpWaitSinceLastTime:
		return fmt.Sprintf("%s_%s", sig.Symbol, o.Input1)
	}
	return fmt.Sprintf("%s=%s_%s_%s", o.Output, o.Input1, sig.Symbol, o.Input2)
}

// VariableRefs returns the slots that name variables (as opposed to literals
// or Undefined) given the current store.
func (o Operator) VariableRefs(vars *VariableStore) []string {
	sig, ok := o.Kind.Signature()
	if !ok {
		return nil
	}
	var refs []string
	add := func(value string, op *Operand) {
		if op == nil || value == "" || value == Undefined {
			return
		}
		if op.Literal && !vars.Has(value) {
			return
		}
		refs = append(refs, value)
	}
	add(o.Input1, sig.Input1)
	add(o.Input2, sig.Input2)
	add(o.Output, sig.Output)
	return refs
}

// PathRefs returns the variables expanded through $name or ${name} inside the
// path slots of a file operator. A slot naming a string variable is scanned
// through that variable's current value.
func (o Operator) PathRefs(vars *VariableStore) []string {
	sig, ok := o.Kind.Signature()
	if !ok {
		return nil
	}
	var refs []string
	scan := func(value string, op *Operand) {
		if op == nil || op.Kind != KindString || !op.Literal || value == Undefined {
			return
		}
		text := value
		if v, ok := vars.Lookup(value); ok {
			text = v.Current.String()
		}
		os.Expand(text, func(name string) string {
			refs = append(refs, name)
			return ""
		})
	}
	scan(o.Input1, sig.Input1)
	scan(o.Input2, sig.Input2)
	return refs
}

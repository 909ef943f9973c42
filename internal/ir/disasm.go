package ir

import (
	"fmt"
	"io"
	"strconv"

	"sable/internal/runtime/builtins"
)

// Disassemble writes a readable listing of main and every function constant.
func Disassemble(w io.Writer, bc *Bytecode) error {
	if bc == nil || bc.Main == nil {
		return fmt.Errorf("nil bytecode")
	}
	d := &disassembler{w: w, consts: bc.Constants}
	fmt.Fprintf(w, "unit (constants=%d, globals=%d)\n", len(bc.Constants), bc.NumGlobals)
	if err := d.function(bc.Main); err != nil {
		return err
	}
	for idx, c := range bc.Constants {
		if c.Kind != ConstFunction {
			continue
		}
		if c.Fn == nil {
			return fmt.Errorf("const[%d]: nil function", idx)
		}
		if err := d.function(c.Fn); err != nil {
			return fmt.Errorf("const[%d] %s: %w", idx, c.Fn.Name, err)
		}
	}
	return nil
}

// DisassembleFunction writes the listing of a single function.
func DisassembleFunction(w io.Writer, fn *Function, consts []Constant) error {
	d := &disassembler{w: w, consts: consts}
	return d.function(fn)
}

type disassembler struct {
	w      io.Writer
	consts []Constant
}

func (d *disassembler) function(fn *Function) error {
	fmt.Fprintf(d.w, "\nfunc %s (params=%d, locals=%d)\n", fn.Name, fn.NumParams, fn.NumLocals)
	for ip, ins := range fn.Code {
		pos := fn.PosAt(ip)
		lineStr := "-"
		if pos.IsValid() {
			lineStr = strconv.Itoa(pos.Line)
		}
		detail, err := d.operands(ins)
		if err != nil {
			return fmt.Errorf("offset %04d: %w", ip, err)
		}
		fmt.Fprintf(d.w, "%04d %4s %-18s", ip, lineStr, ins.Op)
		if detail != "" {
			fmt.Fprintf(d.w, " %s", detail)
		}
		fmt.Fprintln(d.w)
	}
	return nil
}

func (d *disassembler) operands(ins Instruction) (string, error) {
	if !ins.Op.Valid() {
		return "", fmt.Errorf("unknown opcode %d", ins.Op)
	}
	switch ins.Op {
	case OpConstant:
		if ins.A < 0 || ins.A >= len(d.consts) {
			return "", fmt.Errorf("const index out of range: %d", ins.A)
		}
		return fmt.Sprintf("%d ; const[%d]=%s", ins.A, ins.A, FormatConstant(d.consts[ins.A])), nil
	case OpCallBuiltin:
		name := "?"
		if b := builtins.LookupByID(builtins.ID(ins.A)); b != nil {
			name = b.Meta.Name
		}
		return fmt.Sprintf("%d %d ; %s/%d", ins.A, ins.B, name, ins.B), nil
	}
	if ins.Op.Operands() == 1 {
		return strconv.Itoa(ins.A), nil
	}
	return "", nil
}

// FormatConstant renders a pool entry for listings.
func FormatConstant(c Constant) string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstFunction:
		if c.Fn == nil {
			return "<fun nil>"
		}
		return fmt.Sprintf("<fun %s/%d>", c.Fn.Name, c.Fn.NumParams)
	}
	return "<invalid>"
}

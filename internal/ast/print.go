package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump returns a human-readable representation of the AST.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

func fprintNode(w io.Writer, n Node, indent int) {
	if isNil(n) {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *Program:
		fmt.Fprintf(w, "%sProgram\n", ind)
		for _, s := range n.Stmts {
			fprintNode(w, s, indent+1)
		}

	case *FunDecl:
		fmt.Fprintf(w, "%sFunDecl name=%s\n", ind, n.Name)
		if len(n.Params) > 0 {
			fmt.Fprintf(w, "%s  Params:\n", ind)
			for _, p := range n.Params {
				fprintNode(w, p, indent+2)
			}
		}
		if n.Return != nil {
			fmt.Fprintf(w, "%s  ReturnType:\n", ind)
			fprintNode(w, n.Return, indent+2)
		}
		if n.Body != nil {
			fmt.Fprintf(w, "%s  Body:\n", ind)
			fprintNode(w, n.Body, indent+2)
		}

	case *Param:
		fmt.Fprintf(w, "%sParam name=%s\n", ind, n.Name)
		if n.Type != nil {
			fprintNode(w, n.Type, indent+1)
		}

	case *SimpleType:
		fmt.Fprintf(w, "%sSimpleType %s\n", ind, n.Name)

	case *BlockStmt:
		fmt.Fprintf(w, "%sBlockStmt\n", ind)
		for _, s := range n.Stmts {
			fprintNode(w, s, indent+1)
		}

	case *VarDeclStmt:
		fmt.Fprintf(w, "%sVarDecl name=%s\n", ind, n.Name)
		if n.Type != nil {
			fmt.Fprintf(w, "%s  Type:\n", ind)
			fprintNode(w, n.Type, indent+2)
		}
		if n.Value != nil {
			fmt.Fprintf(w, "%s  Value:\n", ind)
			fprintNode(w, n.Value, indent+2)
		}

	case *ExprStmt:
		fmt.Fprintf(w, "%sExprStmt\n", ind)
		fprintNode(w, n.Expression, indent+1)

	case *IfStmt:
		fmt.Fprintf(w, "%sIfStmt\n", ind)
		fmt.Fprintf(w, "%s  Cond:\n", ind)
		fprintNode(w, n.Cond, indent+2)
		fmt.Fprintf(w, "%s  Then:\n", ind)
		fprintNode(w, n.Then, indent+2)
		if n.Else != nil {
			fmt.Fprintf(w, "%s  Else:\n", ind)
			fprintNode(w, n.Else, indent+2)
		}

	case *ReturnStmt:
		fmt.Fprintf(w, "%sReturnStmt\n", ind)
		if n.Result != nil {
			fprintNode(w, n.Result, indent+1)
		}

	case *WhileStmt:
		fmt.Fprintf(w, "%sWhileStmt\n", ind)
		fmt.Fprintf(w, "%s  Cond:\n", ind)
		fprintNode(w, n.Cond, indent+2)
		fmt.Fprintf(w, "%s  Body:\n", ind)
		fprintNode(w, n.Body, indent+2)

	case *ForStmt:
		fmt.Fprintf(w, "%sForStmt\n", ind)
		if n.Init != nil {
			fmt.Fprintf(w, "%s  Init:\n", ind)
			fprintNode(w, n.Init, indent+2)
		}
		if n.Cond != nil {
			fmt.Fprintf(w, "%s  Cond:\n", ind)
			fprintNode(w, n.Cond, indent+2)
		}
		if n.Post != nil {
			fmt.Fprintf(w, "%s  Post:\n", ind)
			fprintNode(w, n.Post, indent+2)
		}
		fmt.Fprintf(w, "%s  Body:\n", ind)
		fprintNode(w, n.Body, indent+2)

	case *IdentExpr:
		fmt.Fprintf(w, "%sIdent %s\n", ind, n.Name)

	case *IntLiteral:
		fmt.Fprintf(w, "%sIntLiteral %d\n", ind, n.Value)

	case *StringLiteral:
		fmt.Fprintf(w, "%sStringLiteral %q\n", ind, n.Value)

	case *BoolLiteral:
		fmt.Fprintf(w, "%sBoolLiteral %v\n", ind, n.Value)

	case *NullLiteral:
		fmt.Fprintf(w, "%sNullLiteral\n", ind)

	case *ArrayLiteral:
		fmt.Fprintf(w, "%sArrayLiteral\n", ind)
		for _, el := range n.Elements {
			fprintNode(w, el, indent+1)
		}

	case *CallExpr:
		fmt.Fprintf(w, "%sCallExpr\n", ind)
		fmt.Fprintf(w, "%s  Callee:\n", ind)
		fprintNode(w, n.Callee, indent+2)
		if len(n.Args) > 0 {
			fmt.Fprintf(w, "%s  Args:\n", ind)
			for _, a := range n.Args {
				fprintNode(w, a, indent+2)
			}
		}

	case *IndexExpr:
		fmt.Fprintf(w, "%sIndexExpr\n", ind)
		fprintNode(w, n.X, indent+1)
		fprintNode(w, n.Index, indent+1)

	case *BinaryExpr:
		fmt.Fprintf(w, "%sBinaryExpr op=%s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *UnaryExpr:
		fmt.Fprintf(w, "%sUnaryExpr op=%s\n", ind, n.Op)
		fprintNode(w, n.X, indent+1)

	case *AssignExpr:
		fmt.Fprintf(w, "%sAssignExpr\n", ind)
		fmt.Fprintf(w, "%s  Target:\n", ind)
		fprintNode(w, n.Target, indent+2)
		fmt.Fprintf(w, "%s  Value:\n", ind)
		fprintNode(w, n.Value, indent+2)

	default:
		fmt.Fprintf(w, "%s<unknown node %T>\n", ind, n)
	}
}

// isNil catches typed nil pointers stored in Node interfaces.
func isNil(n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *BlockStmt:
		return n == nil
	case *IfStmt:
		return n == nil
	}
	return false
}

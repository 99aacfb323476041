package ast

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DecodeModule parses the JSON module document emitted by the front
// end. The document carries the dotted module name, the originating
// source path, and a body of kind-tagged nodes:
//
//	{"module": "app.util", "path": "app/util.py", "body": [
//	  {"kind": "funcdef", "name": "helper", "line": 1, "col": 1, ...}
//	]}
//
// Node positions are line/col pairs; the file component comes from the
// document's path.
func DecodeModule(data []byte) (*Module, error) {
	var doc struct {
		Module string            `json:"module"`
		Path   string            `json:"path"`
		Body   []json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode module document")
	}
	if doc.Module == "" {
		return nil, errors.New("module document has no module name")
	}

	d := &decoder{file: doc.Path}
	body, err := d.stmts(doc.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "module %q", doc.Module)
	}
	return &Module{
		Name:  doc.Module,
		Path:  doc.Path,
		Body:  body,
		Start: Pos{File: doc.Path, Line: 1, Column: 1},
	}, nil
}

type decoder struct {
	file string
}

// rawNode is the union of every node's fields. Which ones apply is
// decided by Kind; unused fields stay zero.
type rawNode struct {
	Kind string `json:"kind"`
	Line int    `json:"line"`
	Col  int    `json:"col"`

	Name       string            `json:"name"`
	Module     string            `json:"module"`
	Alias      string            `json:"alias"`
	Names      []rawImportedName `json:"names"`
	Params     []rawParam        `json:"params"`
	Returns    json.RawMessage   `json:"returns"`
	Body       []json.RawMessage `json:"body"`
	Decorators []string          `json:"decorators"`
	TypeParams []string          `json:"type_params"`
	Bases      []json.RawMessage `json:"bases"`

	Target     json.RawMessage   `json:"target"`
	Annotation json.RawMessage   `json:"annotation"`
	Value      json.RawMessage   `json:"value"`
	Cond       json.RawMessage   `json:"cond"`
	Then       []json.RawMessage `json:"then"`
	Else       []json.RawMessage `json:"else"`
	Iter       json.RawMessage   `json:"iter"`

	ID      string            `json:"id"`
	Attr    string            `json:"attr"`
	Index   json.RawMessage   `json:"index"`
	Fn      json.RawMessage   `json:"fn"`
	Args    []rawArg          `json:"args"`
	Op      string            `json:"op"`
	Left    json.RawMessage   `json:"left"`
	Right   json.RawMessage   `json:"right"`
	Operand json.RawMessage   `json:"operand"`
	Items   []json.RawMessage `json:"items"`
}

type rawImportedName struct {
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

type rawParam struct {
	Name       string          `json:"name"`
	Annotation json.RawMessage `json:"annotation"`
	Default    json.RawMessage `json:"default"`
}

type rawArg struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

func (d *decoder) pos(n *rawNode) Pos {
	return Pos{File: d.file, Line: n.Line, Column: n.Col}
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func (d *decoder) node(raw json.RawMessage) (*rawNode, error) {
	var n rawNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, errors.Wrap(err, "decode node")
	}
	if n.Kind == "" {
		return nil, errors.New("node has no kind")
	}
	return &n, nil
}

func (d *decoder) stmts(raws []json.RawMessage) ([]Stmt, error) {
	var out []Stmt
	for _, raw := range raws {
		s, err := d.stmt(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) stmt(raw json.RawMessage) (Stmt, error) {
	n, err := d.node(raw)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "import":
		imp := &Import{Module: n.Module, Alias: n.Alias, Pos_: d.pos(n)}
		for _, name := range n.Names {
			imp.Names = append(imp.Names, ImportedName{Name: name.Name, Alias: name.Alias})
		}
		return imp, nil

	case "funcdef":
		body, err := d.stmts(n.Body)
		if err != nil {
			return nil, err
		}
		ret, err := d.optExpr(n.Returns)
		if err != nil {
			return nil, err
		}
		fd := &FuncDef{
			Name:       n.Name,
			Returns:    ret,
			Body:       body,
			Decorators: n.Decorators,
			TypeParams: n.TypeParams,
			Pos_:       d.pos(n),
		}
		for _, p := range n.Params {
			ann, err := d.optExpr(p.Annotation)
			if err != nil {
				return nil, err
			}
			def, err := d.optExpr(p.Default)
			if err != nil {
				return nil, err
			}
			fd.Params = append(fd.Params, ParamDecl{Name: p.Name, Annotation: ann, Default: def})
		}
		return fd, nil

	case "classdef":
		body, err := d.stmts(n.Body)
		if err != nil {
			return nil, err
		}
		bases, err := d.exprs(n.Bases)
		if err != nil {
			return nil, err
		}
		return &ClassDef{
			Name:       n.Name,
			Bases:      bases,
			Body:       body,
			TypeParams: n.TypeParams,
			Pos_:       d.pos(n),
		}, nil

	case "assign":
		target, err := d.expr(n.Target)
		if err != nil {
			return nil, err
		}
		ann, err := d.optExpr(n.Annotation)
		if err != nil {
			return nil, err
		}
		value, err := d.optExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &Assign{Target: target, Annotation: ann, Value: value, Pos_: d.pos(n)}, nil

	case "if":
		cond, err := d.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.stmts(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := d.stmts(n.Else)
		if err != nil {
			return nil, err
		}
		return &If{Cond: cond, Then: then, Else: els, Pos_: d.pos(n)}, nil

	case "while":
		cond, err := d.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(n.Body)
		if err != nil {
			return nil, err
		}
		return &While{Cond: cond, Body: body, Pos_: d.pos(n)}, nil

	case "for":
		target, err := d.expr(n.Target)
		if err != nil {
			return nil, err
		}
		iter, err := d.expr(n.Iter)
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(n.Body)
		if err != nil {
			return nil, err
		}
		return &For{Target: target, Iter: iter, Body: body, Pos_: d.pos(n)}, nil

	case "return":
		value, err := d.optExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &Return{Value: value, Pos_: d.pos(n)}, nil

	case "raise":
		value, err := d.optExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &Raise{Value: value, Pos_: d.pos(n)}, nil

	case "expr":
		value, err := d.expr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Value: value, Pos_: d.pos(n)}, nil

	case "pass":
		return &Pass{Pos_: d.pos(n)}, nil

	default:
		return nil, errors.Errorf("unknown statement kind %q at %s", n.Kind, d.pos(n))
	}
}

func (d *decoder) exprs(raws []json.RawMessage) ([]Expr, error) {
	var out []Expr
	for _, raw := range raws {
		e, err := d.expr(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) optExpr(raw json.RawMessage) (Expr, error) {
	if !present(raw) {
		return nil, nil
	}
	return d.expr(raw)
}

func (d *decoder) expr(raw json.RawMessage) (Expr, error) {
	if !present(raw) {
		return nil, errors.New("missing expression")
	}
	n, err := d.node(raw)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "name":
		return &Name{Ident: n.ID, Pos_: d.pos(n)}, nil

	case "attribute":
		value, err := d.expr(n.Value)
		if err != nil {
			return nil, err
		}
		return &Attribute{Value: value, Attr: n.Attr, Pos_: d.pos(n)}, nil

	case "index":
		value, err := d.expr(n.Value)
		if err != nil {
			return nil, err
		}
		index, err := d.expr(n.Index)
		if err != nil {
			return nil, err
		}
		return &Index{Value: value, Index: index, Pos_: d.pos(n)}, nil

	case "call":
		fn, err := d.expr(n.Fn)
		if err != nil {
			return nil, err
		}
		c := &Call{Fn: fn, Pos_: d.pos(n)}
		for _, a := range n.Args {
			value, err := d.expr(a.Value)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, Arg{Name: a.Name, Value: value})
		}
		return c, nil

	case "binop":
		op, ok := binOps[n.Op]
		if !ok {
			return nil, errors.Errorf("unknown binary operator %q at %s", n.Op, d.pos(n))
		}
		left, err := d.expr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := d.expr(n.Right)
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: op, Left: left, Right: right, Pos_: d.pos(n)}, nil

	case "boolop":
		op, ok := boolOps[n.Op]
		if !ok {
			return nil, errors.Errorf("unknown boolean operator %q at %s", n.Op, d.pos(n))
		}
		left, err := d.expr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := d.expr(n.Right)
		if err != nil {
			return nil, err
		}
		return &BoolOp{Op: op, Left: left, Right: right, Pos_: d.pos(n)}, nil

	case "unaryop":
		op, ok := unaryOps[n.Op]
		if !ok {
			return nil, errors.Errorf("unknown unary operator %q at %s", n.Op, d.pos(n))
		}
		operand, err := d.expr(n.Operand)
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: op, Operand: operand, Pos_: d.pos(n)}, nil

	case "compare":
		op, ok := compareOps[n.Op]
		if !ok {
			return nil, errors.Errorf("unknown comparison operator %q at %s", n.Op, d.pos(n))
		}
		left, err := d.expr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := d.expr(n.Right)
		if err != nil {
			return nil, err
		}
		return &Compare{Op: op, Left: left, Right: right, Pos_: d.pos(n)}, nil

	case "int":
		var v int64
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, errors.Wrapf(err, "int literal at %s", d.pos(n))
		}
		return &IntLit{Value: v, Pos_: d.pos(n)}, nil

	case "float":
		var v float64
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, errors.Wrapf(err, "float literal at %s", d.pos(n))
		}
		return &FloatLit{Value: v, Pos_: d.pos(n)}, nil

	case "str":
		var v string
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, errors.Wrapf(err, "string literal at %s", d.pos(n))
		}
		return &StrLit{Value: v, Pos_: d.pos(n)}, nil

	case "bool":
		var v bool
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, errors.Wrapf(err, "bool literal at %s", d.pos(n))
		}
		return &BoolLit{Value: v, Pos_: d.pos(n)}, nil

	case "none":
		return &NoneLit{Pos_: d.pos(n)}, nil

	case "tuple":
		items, err := d.exprs(n.Items)
		if err != nil {
			return nil, err
		}
		return &TupleExpr{Items: items, Pos_: d.pos(n)}, nil

	case "list":
		items, err := d.exprs(n.Items)
		if err != nil {
			return nil, err
		}
		return &ListExpr{Items: items, Pos_: d.pos(n)}, nil

	default:
		return nil, errors.Errorf("unknown expression kind %q at %s", n.Kind, d.pos(n))
	}
}

var binOps = map[string]BinOpKind{
	"+": OpAdd,
	"-": OpSub,
	"*": OpMul,
	"/": OpDiv,
	"%": OpMod,
}

var boolOps = map[string]BoolOpKind{
	"and": OpAnd,
	"or":  OpOr,
}

var unaryOps = map[string]UnaryOpKind{
	"not": OpNot,
	"-":   OpNeg,
}

var compareOps = map[string]CompareOpKind{
	"==":     OpEq,
	"!=":     OpNotEq,
	"is":     OpIs,
	"is not": OpIsNot,
	"<":      OpLt,
	">":      OpGt,
	"<=":     OpLtE,
	">=":     OpGtE,
}

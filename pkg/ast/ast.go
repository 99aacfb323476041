// Package ast defines the parsed-module representation consumed by the
// analyzer and checker. The parser that produces it lives outside this
// module; tests and embedders construct nodes directly.
package ast

import "fmt"

// Pos is a source position. Line and Column are 1-based.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Node is any AST node.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Module is one parsed source file: a dotted module name plus its
// top-level statements in source order.
type Module struct {
	Name  string
	Path  string
	Body  []Stmt
	Start Pos
}

func (m *Module) Position() Pos { return m.Start }

// Imports returns the dotted names of every module imported at the top
// level, in source order, duplicates included.
func (m *Module) Imports() []*Import {
	var out []*Import
	for _, stmt := range m.Body {
		if imp, ok := stmt.(*Import); ok {
			out = append(out, imp)
		}
	}
	return out
}

// ---------------------------------------------------------------------
// Statements

// Import brings another module's exported names into scope. When Names
// is empty the module itself is bound under its (aliased) name; when
// Names is set, individual symbols are bound (a `from X import a, b`).
type Import struct {
	Module string
	Alias  string
	Names  []ImportedName
	Pos_   Pos
}

type ImportedName struct {
	Name  string
	Alias string
}

func (s *Import) Position() Pos { return s.Pos_ }
func (s *Import) stmt()         {}

// Bound returns the name the import introduces into the importing scope
// for whole-module imports.
func (s *Import) Bound() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Module
}

// FuncDef declares a function. Decorators are bare names; "overload"
// marks a signature as part of an overload group.
type FuncDef struct {
	Name       string
	Params     []ParamDecl
	Returns    Expr // annotation, may be nil
	Body       []Stmt
	Decorators []string
	TypeParams []string
	Pos_       Pos
}

type ParamDecl struct {
	Name       string
	Annotation Expr // may be nil
	Default    Expr // may be nil
}

func (s *FuncDef) Position() Pos { return s.Pos_ }
func (s *FuncDef) stmt()         {}

func (s *FuncDef) IsOverload() bool {
	for _, d := range s.Decorators {
		if d == "overload" {
			return true
		}
	}
	return false
}

// ClassDef declares a class with ordered base expressions.
type ClassDef struct {
	Name       string
	Bases      []Expr
	Body       []Stmt
	TypeParams []string
	Pos_       Pos
}

func (s *ClassDef) Position() Pos { return s.Pos_ }
func (s *ClassDef) stmt()         {}

// Assign is `target = value` or `target: annotation = value`.
// Target is a Name, Attribute, or Index expression.
type Assign struct {
	Target     Expr
	Annotation Expr // may be nil
	Value      Expr // may be nil for a bare annotation
	Pos_       Pos
}

func (s *Assign) Position() Pos { return s.Pos_ }
func (s *Assign) stmt()         {}

// If is a conditional with an optional else branch. elif chains arrive
// from the parser as a nested If in Else.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	Pos_ Pos
}

func (s *If) Position() Pos { return s.Pos_ }
func (s *If) stmt()         {}

// While loops until Cond is falsy.
type While struct {
	Cond Expr
	Body []Stmt
	Pos_ Pos
}

func (s *While) Position() Pos { return s.Pos_ }
func (s *While) stmt()         {}

// For iterates Target over Iter.
type For struct {
	Target Expr
	Iter   Expr
	Body   []Stmt
	Pos_   Pos
}

func (s *For) Position() Pos { return s.Pos_ }
func (s *For) stmt()         {}

// Return exits the enclosing function. Value may be nil.
type Return struct {
	Value Expr
	Pos_  Pos
}

func (s *Return) Position() Pos { return s.Pos_ }
func (s *Return) stmt()         {}

// Raise aborts the current flow. The raised expression is checked but
// otherwise opaque to the checker; control does not continue past it.
type Raise struct {
	Value Expr // may be nil (bare re-raise)
	Pos_  Pos
}

func (s *Raise) Position() Pos { return s.Pos_ }
func (s *Raise) stmt()         {}

// ExprStmt is an expression evaluated for effect.
type ExprStmt struct {
	Value Expr
	Pos_  Pos
}

func (s *ExprStmt) Position() Pos { return s.Pos_ }
func (s *ExprStmt) stmt()         {}

// Pass does nothing.
type Pass struct {
	Pos_ Pos
}

func (s *Pass) Position() Pos { return s.Pos_ }
func (s *Pass) stmt()         {}

// ---------------------------------------------------------------------
// Expressions

// Name references a variable.
type Name struct {
	Ident string
	Pos_  Pos
}

func (e *Name) Position() Pos { return e.Pos_ }
func (e *Name) expr()         {}

// Attribute is `value.attr`.
type Attribute struct {
	Value Expr
	Attr  string
	Pos_  Pos
}

func (e *Attribute) Position() Pos { return e.Pos_ }
func (e *Attribute) expr()         {}

// Index is `value[index]`; in annotation position it applies type
// arguments (e.g. list[int], Optional[str]).
type Index struct {
	Value Expr
	Index Expr
	Pos_  Pos
}

func (e *Index) Position() Pos { return e.Pos_ }
func (e *Index) expr()         {}

// Call is `fn(args...)`.
type Call struct {
	Fn   Expr
	Args []Arg
	Pos_ Pos
}

type Arg struct {
	Name  string // "" for positional
	Value Expr
}

func (e *Call) Position() Pos { return e.Pos_ }
func (e *Call) expr()         {}

type BinOpKind int

const (
	OpAdd BinOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

// BinOp is an arithmetic operation.
type BinOp struct {
	Op    BinOpKind
	Left  Expr
	Right Expr
	Pos_  Pos
}

func (e *BinOp) Position() Pos { return e.Pos_ }
func (e *BinOp) expr()         {}

type BoolOpKind int

const (
	OpAnd BoolOpKind = iota
	OpOr
)

// BoolOp is a short-circuiting `and`/`or`.
type BoolOp struct {
	Op    BoolOpKind
	Left  Expr
	Right Expr
	Pos_  Pos
}

func (e *BoolOp) Position() Pos { return e.Pos_ }
func (e *BoolOp) expr()         {}

type UnaryOpKind int

const (
	OpNot UnaryOpKind = iota
	OpNeg
)

type UnaryOp struct {
	Op      UnaryOpKind
	Operand Expr
	Pos_    Pos
}

func (e *UnaryOp) Position() Pos { return e.Pos_ }
func (e *UnaryOp) expr()         {}

type CompareOpKind int

const (
	OpEq CompareOpKind = iota
	OpNotEq
	OpIs
	OpIsNot
	OpLt
	OpGt
	OpLtE
	OpGtE
)

// Compare is a single comparison (chains are desugared by the parser).
type Compare struct {
	Op    CompareOpKind
	Left  Expr
	Right Expr
	Pos_  Pos
}

func (e *Compare) Position() Pos { return e.Pos_ }
func (e *Compare) expr()         {}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	Pos_  Pos
}

func (e *IntLit) Position() Pos { return e.Pos_ }
func (e *IntLit) expr()         {}

// FloatLit is a floating-point literal.
type FloatLit struct {
	Value float64
	Pos_  Pos
}

func (e *FloatLit) Position() Pos { return e.Pos_ }
func (e *FloatLit) expr()         {}

// StrLit is a string literal. In annotation position it is a forward
// type reference.
type StrLit struct {
	Value string
	Pos_  Pos
}

func (e *StrLit) Position() Pos { return e.Pos_ }
func (e *StrLit) expr()         {}

type BoolLit struct {
	Value bool
	Pos_  Pos
}

func (e *BoolLit) Position() Pos { return e.Pos_ }
func (e *BoolLit) expr()         {}

type NoneLit struct {
	Pos_ Pos
}

func (e *NoneLit) Position() Pos { return e.Pos_ }
func (e *NoneLit) expr()         {}

// TupleExpr is `(a, b, ...)`; in annotation position it carries the
// arguments of a subscripted generic.
type TupleExpr struct {
	Items []Expr
	Pos_  Pos
}

func (e *TupleExpr) Position() Pos { return e.Pos_ }
func (e *TupleExpr) expr()         {}

// ListExpr is `[a, b, ...]`.
type ListExpr struct {
	Items []Expr
	Pos_  Pos
}

func (e *ListExpr) Position() Pos { return e.Pos_ }
func (e *ListExpr) expr()         {}

package check

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyrite-lang/pyrite/pkg/ast"
)

// Severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "error"
	}
}

// Code identifies a diagnostic category. Codes are stable: they key the
// deterministic ordering and appear in machine-readable output.
type Code string

const (
	CodeNameError            Code = "name-error"
	CodeDuplicateDecl        Code = "duplicate-declaration"
	CodeTypeMismatch         Code = "type-mismatch"
	CodeNoMatchingOverload   Code = "no-matching-overload"
	CodeClassDefinition      Code = "class-definition"
	CodeInternalLimitReached Code = "internal-limit-reached"
	CodeMissingImport        Code = "missing-import"
	CodeSelfImport           Code = "self-import"
	CodeMissingMember        Code = "missing-member"
	CodeNotCallable          Code = "not-callable"
	CodeBadArguments         Code = "bad-arguments"
	CodeUnresolvedType       Code = "unresolved-type"
)

// Diagnostic is one reported finding. The checker never aborts on a
// diagnostic; it records it and keeps going.
type Diagnostic struct {
	File     string
	Line     int
	Column   int
	Severity Severity
	Code     Code
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s[%s]: %s",
		d.File, d.Line, d.Column, d.Severity, d.Code, d.Message)
}

// Diagnostics accumulates findings for one module pass.
type Diagnostics struct {
	list []Diagnostic
}

func (ds *Diagnostics) Add(sev Severity, code Code, pos ast.Pos, format string, args ...any) {
	ds.list = append(ds.list, Diagnostic{
		File:     pos.File,
		Line:     pos.Line,
		Column:   pos.Column,
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (ds *Diagnostics) Errorf(code Code, pos ast.Pos, format string, args ...any) {
	ds.Add(Error, code, pos, format, args...)
}

func (ds *Diagnostics) Warnf(code Code, pos ast.Pos, format string, args ...any) {
	ds.Add(Warning, code, pos, format, args...)
}

func (ds *Diagnostics) Notef(code Code, pos ast.Pos, format string, args ...any) {
	ds.Add(Note, code, pos, format, args...)
}

func (ds *Diagnostics) HasErrors() bool {
	for _, d := range ds.list {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (ds *Diagnostics) Len() int { return len(ds.list) }

// All returns the accumulated diagnostics in deterministic order:
// position first, then code, then message.
func (ds *Diagnostics) All() []Diagnostic {
	out := append([]Diagnostic(nil), ds.list...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
	return out
}

// Excerpt renders a diagnostic with surrounding source lines and a
// caret underline, for terminal output.
func Excerpt(d Diagnostic, source string) string {
	const (
		red    = "\033[31m"
		blue   = "\033[34m"
		bold   = "\033[1m"
		reset  = "\033[0m"
		dim    = "\033[2m"
	)

	lines := strings.Split(source, "\n")
	if d.Line < 1 || d.Line > len(lines) {
		return d.String()
	}

	var result strings.Builder
	sev := d.Severity.String()
	fmt.Fprintf(&result, "%s%s%s:%s %s\n", bold, red, strings.ToUpper(sev[:1])+sev[1:], reset, d.Message)
	fmt.Fprintf(&result, "  %s%s--> %s:%d:%d%s\n", dim, blue, d.File, d.Line, d.Column, reset)
	fmt.Fprintf(&result, " %s%s |%s\n", dim, padLeft("", 3), reset)

	start := max(1, d.Line-2)
	end := min(len(lines), d.Line+2)
	for i := start; i <= end; i++ {
		num := padLeft(fmt.Sprintf("%d", i), 3)
		if i == d.Line {
			fmt.Fprintf(&result, " %s%s%s%s | %s%s\n", dim, blue, bold, num, reset, lines[i-1])
			padding := strings.Repeat(" ", 1+3+3+d.Column-1)
			fmt.Fprintf(&result, "%s%s^%s\n", padding, red, reset)
		} else {
			fmt.Fprintf(&result, " %s%s | %s%s\n", dim, num, lines[i-1], reset)
		}
	}
	fmt.Fprintf(&result, " %s%s |%s\n", dim, padLeft("", 3), reset)

	return result.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

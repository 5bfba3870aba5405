// Package filter evaluates an optional CEL expression over session facts.
package filter

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/okian/mmr/internal/domain/rating"
)

// ErrInvalidExpression is returned for expressions that do not compile to a
// boolean program.
var ErrInvalidExpression = errors.New("invalid session filter expression")

// Variables visible to expressions.
const (
	VarSessionID   = "session_id"
	VarMode        = "mode"
	VarCommon      = "common"
	VarSpecific    = "specific"
	VarHasMode     = "has_mode"
	VarTeam1Size   = "team_1_size"
	VarTeam2Size   = "team_2_size"
	VarCalibrated1 = "calibrated_1"
	VarCalibrated2 = "calibrated_2"
)

// Filter is a compiled session predicate. The zero value and a filter built
// from an empty expression accept every session.
type Filter struct {
	expr    string
	program cel.Program
}

// New compiles expr. An empty expression yields a pass-through filter.
func New(expr string) (*Filter, error) {
	f := &Filter{expr: expr}
	if expr == "" {
		return f, nil
	}

	env, err := cel.NewEnv(
		cel.Variable(VarSessionID, cel.IntType),
		cel.Variable(VarMode, cel.StringType),
		cel.Variable(VarCommon, cel.StringType),
		cel.Variable(VarSpecific, cel.StringType),
		cel.Variable(VarHasMode, cel.BoolType),
		cel.Variable(VarTeam1Size, cel.IntType),
		cel.Variable(VarTeam2Size, cel.IntType),
		cel.Variable(VarCalibrated1, cel.IntType),
		cel.Variable(VarCalibrated2, cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}

	ast, iss := env.Parse(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, iss.Err())
	}
	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, iss.Err())
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q does not return bool", ErrInvalidExpression, expr)
	}
	f.program, err = env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}
	return f, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Accept reports whether the session passes. Evaluation errors reject the
// session and are returned to the caller.
func (f *Filter) Accept(s rating.Session) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	out, _, err := f.program.Eval(Facts(s))
	if err != nil {
		return false, fmt.Errorf("evaluate session filter: %w", err)
	}
	ok, isBool := out.Value().(bool)
	return isBool && ok, nil
}

// Facts returns the variables an expression sees for a session.
func Facts(s rating.Session) map[string]any {
	return map[string]any{
		VarSessionID:   int64(s.ID),
		VarMode:        s.Mode.Raw,
		VarCommon:      s.Mode.Common,
		VarSpecific:    s.Mode.Specific,
		VarHasMode:     s.HasMode,
		VarTeam1Size:   int64(len(s.Team1.Members)),
		VarTeam2Size:   int64(len(s.Team2.Members)),
		VarCalibrated1: calibrated(s.Team1),
		VarCalibrated2: calibrated(s.Team2),
	}
}

func calibrated(t rating.Team) int64 {
	var n int64
	for _, m := range t.Members {
		if m.Level.IsCalibrated() {
			n++
		}
	}
	return n
}

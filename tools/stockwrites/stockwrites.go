// Package stockwrites is an analyzer that reports writes to
// Medication.CurrentStock outside the packages that own stock accounting.
//
// Stock moves only through the lifecycle transitions and lifecycle.Manager.
// The data model and the store may clamp it.  Anywhere else, setting the
// field directly bypasses the floor at zero and the paired dose update.
package stockwrites

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "stockwrites",
	Doc:      "reports assignments to Medication.CurrentStock outside lifecycle, dblayer, and dbtypes",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

const (
	modelPkg   = "medsidekick/dbtypes"
	stockField = "CurrentStock"
)

var owners = map[string]bool{
	"medsidekick/dbtypes":   true,
	"medsidekick/dblayer":   true,
	"medsidekick/lifecycle": true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if owners[strings.TrimSuffix(pass.Pkg.Path(), "_test")] {
		return nil, nil
	}

	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	nodeFilter := []ast.Node{
		(*ast.AssignStmt)(nil),
		(*ast.IncDecStmt)(nil),
	}
	ins.Preorder(nodeFilter, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.AssignStmt:
			for _, lhs := range n.Lhs {
				check(pass, lhs)
			}
		case *ast.IncDecStmt:
			check(pass, n.X)
		}
	})
	return nil, nil
}

func check(pass *analysis.Pass, expr ast.Expr) {
	for {
		paren, ok := expr.(*ast.ParenExpr)
		if !ok {
			break
		}
		expr = paren.X
	}

	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return
	}
	if !isStockField(pass.TypesInfo.ObjectOf(sel.Sel)) {
		return
	}
	pass.Reportf(sel.Pos(), "direct write to Medication.%s; use the lifecycle transitions or lifecycle.Manager", stockField)
}

func isStockField(obj types.Object) bool {
	v, ok := obj.(*types.Var)
	if !ok || !v.IsField() || v.Name() != stockField || v.Pkg() == nil {
		return false
	}
	return v.Pkg().Path() == modelPkg
}

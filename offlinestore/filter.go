package offlinestore

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// filterProgram is a compiled row filter expression, evaluated against
// column→value maps. Example: `age > 30 && country == "DE"`.
type filterProgram struct {
	src       string
	program   *vm.Program
	variables []string
}

func compileFilter(src string) (*filterProgram, error) {
	variables, err := extractVariables(src)
	if err != nil {
		return nil, err
	}

	program, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter expression: %w", err)
	}

	return &filterProgram{
		src:       src,
		program:   program,
		variables: variables,
	}, nil
}

func (p *filterProgram) Match(row map[string]interface{}) (bool, error) {
	out, err := expr.Run(p.program, map[string]interface{}(row))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter expression: %w", err)
	}

	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression is not boolean: %s", p.src)
	}
	return matched, nil
}

// extractVariables parses the expression and collects the identifiers it
// references, sorted for deterministic output.
func extractVariables(code string) ([]string, error) {
	tree, err := parser.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression: %w", err)
	}

	variables := make(map[string]struct{})
	walk(tree.Node, variables)

	var result []string
	for v := range variables {
		result = append(result, v)
	}

	sort.Strings(result)

	return result, nil
}

func walk(node ast.Node, variables map[string]struct{}) {
	if node == nil {
		return
	}

	switch n := node.(type) {
	case *ast.IdentifierNode:
		variables[n.Value] = struct{}{}

	case *ast.BinaryNode:
		walk(n.Left, variables)
		walk(n.Right, variables)

	case *ast.UnaryNode:
		walk(n.Node, variables)

	case *ast.MemberNode:
		walk(n.Node, variables)

	case *ast.CallNode:
		// the callee's name is a function, not a column
		for _, arg := range n.Arguments {
			walk(arg, variables)
		}

	case *ast.BuiltinNode:
		for _, arg := range n.Arguments {
			walk(arg, variables)
		}

	case *ast.ConditionalNode:
		walk(n.Cond, variables)
		walk(n.Exp1, variables)
		walk(n.Exp2, variables)

	case *ast.ArrayNode:
		for _, elem := range n.Nodes {
			walk(elem, variables)
		}

	case *ast.MapNode:
		for _, pair := range n.Pairs {
			walk(pair, variables)
		}

	case *ast.PairNode:
		walk(n.Key, variables)
		walk(n.Value, variables)
	}
}

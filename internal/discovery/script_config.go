package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentic-research/hapsynth/internal/descriptor"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var (
	errUnsupported = errors.New("unsupported expression")
	errSyntax      = errors.New("syntax error")
)

// parseScriptConfig extracts the literal page config exported by a .ts/.js
// config module. Recognized forms:
//
//	export default { ... }
//	export default definePageConfig({ ... })
//	module.exports = { ... }
//
// Function-valued properties (the success/fail/complete callbacks) are kept as
// their source text. Other non-literal values such as identifiers are dropped.
func parseScriptConfig(ctx context.Context, path string, src []byte) (map[string]any, error) {
	lang := typescript.GetLanguage()
	if filepath.Ext(path) == ".js" {
		lang = javascript.GetLanguage()
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, &descriptor.ParseError{Path: path, Err: err}
	}
	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, &descriptor.ParseError{Path: path, Err: errSyntax}
	}

	expr := exportedExpression(root, src)
	if expr == nil {
		return map[string]any{}, nil
	}
	v, err := literalValue(expr, src)
	if err != nil {
		return nil, &descriptor.ParseError{Path: path, Err: fmt.Errorf("export: %w", err)}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &descriptor.ParseError{Path: path, Err: descriptor.ErrNotObject}
	}
	return obj, nil
}

// exportedExpression returns the value of the default export, if any.
func exportedExpression(root *sitter.Node, src []byte) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "export_statement":
			if v := n.ChildByFieldName("value"); v != nil {
				return v
			}
		case "expression_statement":
			if n.NamedChildCount() == 0 {
				continue
			}
			assign := n.NamedChild(0)
			if assign.Type() != "assignment_expression" {
				continue
			}
			left := assign.ChildByFieldName("left")
			if left == nil {
				continue
			}
			switch left.Content(src) {
			case "module.exports", "exports.default":
				return assign.ChildByFieldName("right")
			}
		}
	}
	return nil
}

func literalValue(n *sitter.Node, src []byte) (any, error) {
	switch n.Type() {
	case "object":
		obj := map[string]any{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "pair" {
				continue
			}
			key, err := keyName(c.ChildByFieldName("key"), src)
			if err != nil {
				continue
			}
			v, err := literalValue(c.ChildByFieldName("value"), src)
			if errors.Is(err, errUnsupported) {
				continue
			}
			if err != nil {
				return nil, err
			}
			obj[key] = v
		}
		return obj, nil
	case "array":
		arr := []any{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "comment" {
				continue
			}
			v, err := literalValue(c, src)
			if errors.Is(err, errUnsupported) {
				continue
			}
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case "string":
		return stringValue(n.Content(src)), nil
	case "template_string":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "template_substitution" {
				return nil, errUnsupported
			}
		}
		return strings.Trim(n.Content(src), "`"), nil
	case "number":
		return numberValue(n.Content(src))
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "undefined":
		return nil, nil
	case "unary_expression":
		op := n.ChildByFieldName("operator")
		arg := n.ChildByFieldName("argument")
		if op == nil || arg == nil || arg.Type() != "number" {
			return nil, errUnsupported
		}
		v, err := numberValue(arg.Content(src))
		if err != nil {
			return nil, err
		}
		switch op.Content(src) {
		case "+":
			return v, nil
		case "-":
			if i, ok := v.(int64); ok {
				return -i, nil
			}
			return -v.(float64), nil
		}
		return nil, errUnsupported
	case "arrow_function", "function_expression", "function":
		return n.Content(src), nil
	case "call_expression":
		args := n.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			return nil, errUnsupported
		}
		return literalValue(args.NamedChild(0), src)
	case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
		if n.NamedChildCount() == 0 {
			return nil, errUnsupported
		}
		return literalValue(n.NamedChild(0), src)
	default:
		return nil, errUnsupported
	}
}

func keyName(n *sitter.Node, src []byte) (string, error) {
	if n == nil {
		return "", errUnsupported
	}
	switch n.Type() {
	case "property_identifier", "number":
		return n.Content(src), nil
	case "string":
		return stringValue(n.Content(src)), nil
	default:
		return "", errUnsupported
	}
}

// stringValue unquotes a single- or double-quoted JS string literal.
func stringValue(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	inner := raw[1 : len(raw)-1]
	if raw[0] == '\'' {
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
	}
	if s, err := strconv.Unquote(`"` + inner + `"`); err == nil {
		return s
	}
	return inner
}

func numberValue(raw string) (any, error) {
	raw = strings.ReplaceAll(raw, "_", "")
	if i, err := strconv.ParseInt(raw, 0, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("number %q: %w", raw, err)
	}
	return f, nil
}

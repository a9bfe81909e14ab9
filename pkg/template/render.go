// Package template renders TemplateField groups against a variable context.
//
// Expressions use Go text/template syntax ({{.name}}, pipelines and a small
// function set). Rendering is strict: referencing a variable that is not in
// the context fails with an UndefinedVariableError instead of producing an
// empty string.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/Sternrassler/api-connector/pkg/spec"
)

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"join":  join,
	"add":   add,
}

// missingKey matches the text/template error for a missing map entry.
var missingKey = regexp.MustCompile(`map has no entry for key "([^"]+)"`)

// IsTemplated reports whether s contains template actions.
func IsTemplated(s string) bool {
	return strings.Contains(s, "{{")
}

// RenderString renders a single expression. name identifies the expression
// in errors.
func RenderString(name, expr string, vars Vars) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(expr)
	if err != nil {
		return "", &SyntaxError{Field: name, Err: err}
	}

	if missing, ok := firstMissing(tmpl.Tree.Root, vars); ok {
		return "", &UndefinedVariableError{Field: name, Variable: missing}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, execData(vars)); err != nil {
		if m := missingKey.FindStringSubmatch(err.Error()); m != nil {
			return "", &UndefinedVariableError{Field: name, Variable: m[1]}
		}
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return sb.String(), nil
}

// Render renders every template entry of fields. group prefixes field names
// in errors ("params.limit"). Boolean entries are required/optional markers
// and are skipped, as are nil entries. Other scalars are formatted verbatim.
func Render(group string, fields spec.Fields, vars Vars) (map[string]string, error) {
	out := make(map[string]string, len(fields))

	// Sorted so the reported error is deterministic.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := key
		if group != "" {
			name = group + "." + key
		}

		switch v := fields[key].(type) {
		case nil, bool:
			continue
		case string:
			rendered, err := RenderString(name, v, vars)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// RequiredParams returns the fields marked true, sorted.
func RequiredParams(fields spec.Fields) []string {
	return flagged(fields, true)
}

// OptionalParams returns the fields marked false, sorted.
func OptionalParams(fields spec.Fields) []string {
	return flagged(fields, false)
}

func flagged(fields spec.Fields, want bool) []string {
	var names []string
	for k, v := range fields {
		if b, ok := v.(bool); ok && b == want {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// execData is the map a template executes against. Nil values render as
// the empty string rather than "<no value>".
func execData(vars Vars) map[string]any {
	data := make(map[string]any, len(vars.m))
	for k, v := range vars.m {
		if v == nil {
			v = ""
		}
		data[k] = v
	}
	return data
}

// firstMissing walks the parse tree and returns the first top-level variable
// that is referenced but absent from vars. Only conditions are walked: a
// variable inside an if branch is checked when the branch executes, and
// range and with bodies rebind dot.
func firstMissing(node parse.Node, vars Vars) (string, bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return "", false
		}
		for _, child := range n.Nodes {
			if name, ok := firstMissing(child, vars); ok {
				return name, true
			}
		}
	case *parse.ActionNode:
		return firstMissing(n.Pipe, vars)
	case *parse.PipeNode:
		if n == nil {
			return "", false
		}
		for _, cmd := range n.Cmds {
			if name, ok := firstMissing(cmd, vars); ok {
				return name, true
			}
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			if name, ok := firstMissing(arg, vars); ok {
				return name, true
			}
		}
	case *parse.ChainNode:
		return firstMissing(n.Node, vars)
	case *parse.FieldNode:
		if len(n.Ident) > 0 && !vars.Has(n.Ident[0]) {
			return n.Ident[0], true
		}
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" && !vars.Has(n.Ident[1]) {
			return n.Ident[1], true
		}
	case *parse.IfNode:
		return firstMissing(n.Pipe, vars)
	case *parse.RangeNode:
		return firstMissing(n.Pipe, vars)
	case *parse.WithNode:
		return firstMissing(n.Pipe, vars)
	case *parse.TemplateNode:
		return firstMissing(n.Pipe, vars)
	}
	return "", false
}

// join concatenates a list of values with sep.
func join(items any, sep string) (string, error) {
	switch list := items.(type) {
	case []string:
		return strings.Join(list, sep), nil
	case []any:
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep), nil
	case string:
		return list, nil
	default:
		return "", fmt.Errorf("cannot join %T", items)
	}
}

func add(a, b any) (int64, error) {
	x, err := toInt(a)
	if err != nil {
		return 0, err
	}
	y, err := toInt(b)
	if err != nil {
		return 0, err
	}
	return x + y, nil
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("cannot use %T as integer", v)
	}
}

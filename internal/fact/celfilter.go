package fact

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// celFilter wraps a compiled CEL program evaluated against one fact.
type celFilter struct {
	prog cel.Program
}

var celEnv = func() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("ns", cel.StringType),
		cel.Variable("serial", cel.IntType),
		cel.Variable("size", cel.IntType),
		// header exposes the full header as a map: header.type, header.id, ...
		cel.Variable("header", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("meta", cel.MapType(cel.StringType, cel.StringType)),
		// json is the decoded payload, null when the payload is not JSON
		cel.Variable("json", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		panic(err)
	}
	return env
}()

func newCELFilter(expr string) (*celFilter, error) {
	expr = strings.TrimSpace(expr)
	ast, iss := celEnv.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, invalid("filter must evaluate to bool, got %s", ast.OutputType())
	}
	prog, err := celEnv.Program(ast)
	if err != nil {
		return nil, err
	}
	return &celFilter{prog: prog}, nil
}

// Eval evaluates the program against f. Evaluation errors count as no match.
func (c *celFilter) Eval(f *Fact) bool {
	var payload any
	if len(f.Payload) > 0 {
		_ = json.Unmarshal(f.Payload, &payload)
	}
	meta := f.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	aggs := make([]string, 0, len(f.AggIDs))
	for _, a := range f.AggIDs {
		aggs = append(aggs, a.String())
	}
	out, _, err := c.prog.Eval(map[string]any{
		"ns":     f.Namespace,
		"serial": int64(f.Serial),
		"size":   int64(len(f.Payload)),
		"header": map[string]any{
			"id":     f.ID.String(),
			"ns":     f.Namespace,
			"type":   f.Type,
			"aggIds": aggs,
			"meta":   meta,
		},
		"meta":   meta,
		"json":   payload,
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

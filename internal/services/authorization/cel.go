package authorization

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELEngine compiles and evaluates capability rules
type CELEngine struct {
	env *cel.Env
}

// EvaluationContext contains the context data for CEL evaluation
type EvaluationContext struct {
	Resource map[string]interface{} // Request parameters (e.g., resource.company_post_id)
	Subject  map[string]interface{} // Caller attributes (e.g., subject.role, subject.login)
	Request  map[string]interface{} // Request context (e.g., request.capability)
}

// NewCELEngine creates a new CEL engine with predefined declarations
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("resource", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("subject", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELEngine{
		env: env,
	}, nil
}

// Compile type-checks a boolean expression and returns a reusable program
func (e *CELEngine) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("CEL expression must return boolean, got: %s", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

// EvaluateProgram evaluates a compiled program. Missing context maps are
// treated as empty.
func EvaluateProgram(program cel.Program, context *EvaluationContext) (bool, error) {
	vars := map[string]interface{}{
		"resource": map[string]interface{}{},
		"subject":  map[string]interface{}{},
		"request":  map[string]interface{}{},
	}
	if context != nil {
		if context.Resource != nil {
			vars["resource"] = context.Resource
		}
		if context.Subject != nil {
			vars["subject"] = context.Subject
		}
		if context.Request != nil {
			vars["request"] = context.Request
		}
	}

	result, _, err := program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not evaluate to boolean, got: %T", result.Value())
	}

	return boolResult, nil
}

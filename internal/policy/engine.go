// Package policy evaluates run admission rules with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// Decision values produced by the admission policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Decision is the outcome of evaluating one run request.
type Decision struct {
	Decision string   `json:"decision"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Allowed reports whether the run may start.
func (d Decision) Allowed() bool {
	return d.Decision != DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles policyContent. The module must define
// data.runwatch.admission.result as {"decision": string, "reasons": [string]}.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.runwatch.admission.result"),
		rego.Module("admission.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks req against the admission policy. A policy that produces
// no result allows the run.
func (e *Engine) Evaluate(ctx context.Context, req domain.RunRequest) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input(req)))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: DecisionAllow}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Decision{}, fmt.Errorf("policy result has unexpected type %T", results[0].Expressions[0].Value)
	}

	var d Decision
	if s, ok := obj["decision"].(string); ok {
		d.Decision = s
	} else {
		d.Decision = DecisionAllow
	}
	if reasons, ok := obj["reasons"].([]any); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				d.Reasons = append(d.Reasons, s)
			}
		}
	}
	return d, nil
}

func input(req domain.RunRequest) map[string]any {
	in := map[string]any{
		"tickers":         anySlice(req.Tickers),
		"selected_agents": anySlice(req.SelectedAgents),
		"model_name":      req.ModelName,
		"model_provider":  req.ModelProvider,
	}
	if req.InitialCash != nil {
		in["initial_cash"] = *req.InitialCash
	}
	if req.MarginRequirement != nil {
		in["margin_requirement"] = *req.MarginRequirement
	}
	return in
}

func anySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// DefaultPolicy is the admission policy used when no policy file is set.
const DefaultPolicy = `
package runwatch.admission

deny contains "at least one ticker is required" if {
	count(input.tickers) == 0
}

deny contains sprintf("ticker %d is blank", [i]) if {
	some i, t in input.tickers
	trim_space(t) == ""
}

deny contains "at least one agent must be selected" if {
	count(input.selected_agents) == 0
}

deny contains "initial_cash must be positive" if {
	input.initial_cash <= 0
}

deny contains "margin_requirement must not be negative" if {
	input.margin_requirement < 0
}

default decision := "allow"

decision := "block" if {
	count(deny) > 0
}

result := {"decision": decision, "reasons": sort(deny)}
`

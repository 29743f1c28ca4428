package domain

// AgentModelConfig overrides the run-global model for one agent.
type AgentModelConfig struct {
	AgentID       string `json:"agent_id"`
	ModelName     string `json:"model_name,omitempty"`
	ModelProvider string `json:"model_provider,omitempty"`
}

// RunRequest is the body posted to the backend to start a run.
type RunRequest struct {
	Tickers           []string           `json:"tickers"`
	SelectedAgents    []string           `json:"selected_agents"`
	AgentModels       []AgentModelConfig `json:"agent_models,omitempty"`
	ModelName         string             `json:"model_name,omitempty"`
	ModelProvider     string             `json:"model_provider,omitempty"`
	InitialCash       *float64           `json:"initial_cash,omitempty"`
	MarginRequirement *float64           `json:"margin_requirement,omitempty"`
	ShowReasoning     *bool              `json:"show_reasoning,omitempty"`
	StartDate         string             `json:"start_date,omitempty"`
	EndDate           string             `json:"end_date,omitempty"`
}

package agents

import "fmt"

// AgentInfo is an agent installed in the backend orchestrator.
type AgentInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	RequestCount int      `json:"requestCount"`
	Capabilities []string `json:"capabilities"`
}

// MarketplaceAgent is an agent that can be added to the orchestrator.
type MarketplaceAgent struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	Description       string   `json:"description"`
	Icon              string   `json:"icon"`
	Rating            float64  `json:"rating"`
	Downloads         int      `json:"downloads"`
	Capabilities      []string `json:"capabilities"`
	RequiresAPIKey    bool     `json:"requires_api_key"`
	APIKeyPlaceholder string   `json:"api_key_placeholder,omitempty"`
	AgentType         string   `json:"agent_type,omitempty"`
	APIKey            string   `json:"api_key,omitempty"`
}

// AddResult is the response to adding an agent.
type AddResult struct {
	Message string `json:"message"`
	AgentID string `json:"agent_id"`
}

// RemoveResult is the response to removing an agent.
type RemoveResult struct {
	Message string `json:"message"`
}

// Health is the backend health report.
type Health struct {
	Status                  string `json:"status"`
	Message                 string `json:"message"`
	OrchestratorInitialized bool   `json:"orchestrator_initialized"`
	AgentsCount             int    `json:"agents_count"`
	SupervisorActive        bool   `json:"supervisor_active"`
	Timestamp               string `json:"timestamp"`
}

// Healthy reports whether the backend can take chat requests.
func (h Health) Healthy() bool {
	return h.Status == "healthy" && h.OrchestratorInitialized
}

// APIError is a non-2xx response from the agents API.
type APIError struct {
	Endpoint string
	Status   int
	Detail   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Detail)
}

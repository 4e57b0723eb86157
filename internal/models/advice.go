package models

// Advice is a structured suggestion returned by the advisory service.
type Advice struct {
	Priority Priority `json:"suggestedPriority"`
	SubTasks []string `json:"suggestedSubTasks"`
	Tips     string   `json:"tips"`
}

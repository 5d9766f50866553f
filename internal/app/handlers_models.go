package app

import (
	"encoding/json"
	"net/http"
)

type modelsResponse struct {
	Object string      `json:"object"`
	Data   []modelItem `json:"data"`
}

type modelItem struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

// handleListModels serves GET /v1/models, the OpenAI-shaped listing of
// every logical model name the routing document declares, whether or
// not any of its bindings is enabled, plus "auto".
func (a *Application) handleListModels(w http.ResponseWriter, r *http.Request) {
	names := a.selector.ListModels()
	resp := modelsResponse{Object: "list", Data: make([]modelItem, 0, len(names))}
	for _, name := range names {
		resp.Data = append(resp.Data, modelItem{ID: name, Object: "model"})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

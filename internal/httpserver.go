package internal

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// APIServer is the request-driven HTTP surface over a dispatcher.
type APIServer struct {
	dispatcher *Dispatcher
}

// NewAPIServer creates the HTTP API over the given dispatcher.
func NewAPIServer(dispatcher *Dispatcher) *APIServer {
	return &APIServer{dispatcher: dispatcher}
}

// Handler returns the route table.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe", s.handleDescribe)
	mux.HandleFunc("/health", handleHealth)
	return mux
}

type describeRequest struct {
	ImagePath string `json:"image_path"`
	Question  string `json:"question"`
}

type describeResponse struct {
	OK               bool    `json:"ok"`
	ImagePath        string  `json:"image_path"`
	AutoPrompt       string  `json:"auto_prompt"`
	ResponseDescribe string  `json:"response_describe"`
	ResponseQuestion *string `json:"response_question"`
}

func (s *APIServer) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"ok": false, "error": "POST only"})
		return
	}

	var req describeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "invalid JSON body"})
		return
	}

	imagePath := strings.TrimSpace(req.ImagePath)
	if imagePath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "image_path is required"})
		return
	}

	result, err := s.dispatcher.Describe(r.Context(), imagePath, strings.TrimSpace(req.Question))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, describeResponse{
		OK:               true,
		ImagePath:        result.ImagePath,
		AutoPrompt:       result.AutoPrompt,
		ResponseDescribe: result.ResponseDescribe,
		ResponseQuestion: result.ResponseQuestion,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		LogError("failed to encode response: %v", err)
	}
}

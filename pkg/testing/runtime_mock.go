package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// MockMessage is a chat message as it travels over the OpenAI wire format.
type MockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MockModel is a model loaded into the MockRuntime.
type MockModel struct {
	ID          string
	Model       string
	Purpose     string
	AdapterPath string
	Request     map[string]interface{}
}

// MockRuntime is an in-process stand-in for the fine-tuning runtime sidecar.
// Saved adapters and merged models are written to FS so callers can inspect
// the artifacts exactly as they would on a shared volume.
type MockRuntime struct {
	Server *httptest.Server
	FS     afero.Fs

	// Behaviour knobs. Set them before the code under test runs.
	NotReadyFor        int
	Statuses           []string
	FineTuneStatusCode int
	FineTuneMessage    string
	EvaluateMetrics    map[string]float64
	Logits             [][][]float64
	LabelIDs           [][]int
	TrainingMetrics    string
	MergeLeavesAdapter bool
	AdapterTaskType    string
	Generate           func(messages []MockMessage) string

	mu          sync.Mutex
	nextID      int
	resident    map[string]MockModel
	maxResident int
	loads       []MockModel
	released    []string
	fineTunes   []map[string]interface{}
	evaluations []map[string]interface{}
	prompts     [][]MockMessage
	statusCalls int
	terminated  int
}

// NewMockRuntime starts a MockRuntime. Close it with Server.Close.
func NewMockRuntime(fs afero.Fs) *MockRuntime {
	m := &MockRuntime{
		FS:              fs,
		Statuses:        []string{"RUNNING", "FINISHED"},
		EvaluateMetrics: map[string]float64{"eval_loss": 1.25},
		TrainingMetrics: `{"train_loss": 1.5}`,
		AdapterTaskType: "CAUSAL_LM",
		resident:        map[string]MockModel{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", m.status)
	mux.HandleFunc("POST /models", m.load)
	mux.HandleFunc("DELETE /models/{id}", m.release)
	mux.HandleFunc("POST /models/{id}/adapter", m.saveAdapter)
	mux.HandleFunc("POST /models/{id}/merge", m.merge)
	mux.HandleFunc("POST /finetune", m.fineTune)
	mux.HandleFunc("POST /evaluate", m.evaluate)
	mux.HandleFunc("GET /metrics", m.metrics)
	mux.HandleFunc("POST /terminate", m.terminate)
	mux.HandleFunc("POST /v1/chat/completions", m.chatCompletions)
	m.Server = httptest.NewServer(mux)
	return m
}

// URL is the base URL of the mock runtime.
func (m *MockRuntime) URL() string { return m.Server.URL }

// Loads returns every model load request, in order.
func (m *MockRuntime) Loads() []MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockModel(nil), m.loads...)
}

// Released returns the ids of released models, in order.
func (m *MockRuntime) Released() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.released...)
}

// Resident returns how many models are currently loaded.
func (m *MockRuntime) Resident() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resident)
}

// MaxResident returns the peak number of models loaded at the same time.
func (m *MockRuntime) MaxResident() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxResident
}

// FineTunes returns the decoded /finetune payloads.
func (m *MockRuntime) FineTunes() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]interface{}(nil), m.fineTunes...)
}

// Evaluations returns the decoded /evaluate payloads.
func (m *MockRuntime) Evaluations() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]interface{}(nil), m.evaluations...)
}

// Prompts returns the message lists received on the chat endpoint.
func (m *MockRuntime) Prompts() [][]MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]MockMessage(nil), m.prompts...)
}

// Terminated returns how many times /terminate was called.
func (m *MockRuntime) Terminated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (m *MockRuntime) status(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statusCalls++
	if m.statusCalls <= m.NotReadyFor {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	if len(m.fineTunes) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "READY"})
		return
	}

	status := "FINISHED"
	if len(m.Statuses) > 0 {
		status = m.Statuses[0]
		if len(m.Statuses) > 1 {
			m.Statuses = m.Statuses[1:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": "training " + status})
}

func (m *MockRuntime) load(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if !decode(w, r, &req) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	model := MockModel{
		ID:      fmt.Sprintf("model-%d", m.nextID),
		Request: req,
	}
	model.Model, _ = req["model"].(string)
	model.Purpose, _ = req["purpose"].(string)
	model.AdapterPath, _ = req["adapter_path"].(string)

	m.resident[model.ID] = model
	m.loads = append(m.loads, model)
	if len(m.resident) > m.maxResident {
		m.maxResident = len(m.resident)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": model.ID, "name": model.Model})
}

func (m *MockRuntime) release(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := r.PathValue("id")
	if _, ok := m.resident[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown model " + id})
		return
	}
	delete(m.resident, id)
	m.released = append(m.released, id)
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockRuntime) residentModel(w http.ResponseWriter, r *http.Request) (MockModel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	model, ok := m.resident[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown model"})
	}
	return model, ok
}

func (m *MockRuntime) writeArtifacts(dir string, files map[string]string) error {
	if err := m.FS.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, body := range files {
		if err := afero.WriteFile(m.FS, filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockRuntime) saveAdapter(w http.ResponseWriter, r *http.Request) {
	model, ok := m.residentModel(w, r)
	if !ok {
		return
	}
	var req struct {
		OutputDir string `json:"output_dir"`
	}
	if !decode(w, r, &req) {
		return
	}

	adapterConfig, _ := json.Marshal(map[string]interface{}{
		"base_model_name_or_path": model.Model,
		"peft_type":               "LORA",
		"task_type":               m.AdapterTaskType,
		"r":                       16,
		"lora_alpha":              32,
		"lora_dropout":            0.05,
		"bias":                    "none",
	})
	err := m.writeArtifacts(req.OutputDir, map[string]string{
		"adapter_config.json":       string(adapterConfig),
		"adapter_model.safetensors": "weights",
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "SAVED"})
}

func (m *MockRuntime) merge(w http.ResponseWriter, r *http.Request) {
	model, ok := m.residentModel(w, r)
	if !ok {
		return
	}
	var req struct {
		OutputDir string `json:"output_dir"`
	}
	if !decode(w, r, &req) {
		return
	}

	files := map[string]string{
		"config.json":       `{"model_type":"qwen2","architectures":["Qwen2ForCausalLM"],"torch_dtype":"bfloat16"}`,
		"model.safetensors": "merged weights of " + model.Model,
	}
	if m.MergeLeavesAdapter {
		files["adapter_config.json"] = "{}"
	}
	if err := m.writeArtifacts(req.OutputDir, files); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "MERGED"})
}

func (m *MockRuntime) fineTune(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if !decode(w, r, &req) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FineTuneStatusCode != 0 {
		writeJSON(w, m.FineTuneStatusCode, map[string]string{"status": "FAILED", "message": m.FineTuneMessage})
		return
	}
	m.fineTunes = append(m.fineTunes, req)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "RUNNING", "message": "training started"})
}

func (m *MockRuntime) evaluate(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if !decode(w, r, &req) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evaluations = append(m.evaluations, req)
	resp := map[string]interface{}{"metrics": m.EvaluateMetrics}
	if m.Logits != nil {
		resp["logits"] = m.Logits
		resp["label_ids"] = m.LabelIDs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (m *MockRuntime) metrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(m.TrainingMetrics))
}

func (m *MockRuntime) terminate(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	m.terminated++
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "TERMINATED"})
}

func (m *MockRuntime) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string        `json:"model"`
		Messages []MockMessage `json:"messages"`
	}
	if !decode(w, r, &req) {
		return
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, req.Messages)
	generate := m.Generate
	m.mu.Unlock()

	content := ""
	if generate != nil {
		content = generate(req.Messages)
	} else if n := len(req.Messages); n > 0 {
		content = req.Messages[n-1].Content
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   req.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
}

package preview

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/colonyops/kiln/internal/core/fileop"
	"github.com/colonyops/kiln/internal/core/sandbox"
	"github.com/colonyops/kiln/internal/core/stream"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/core/vfs"
	"github.com/colonyops/kiln/internal/studio"
)

const maxBodySize = 4 << 20

type workspaceView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Tasks     int    `json:"tasks"`
	Autopilot bool   `json:"autopilot"`
}

func viewOf(ws *studio.Workspace) workspaceView {
	_, version := ws.Tree()
	return workspaceView{
		ID:        ws.ID,
		Name:      ws.Name,
		Version:   version,
		Tasks:     ws.Tasks.Len(),
		Autopilot: ws.Autopilot(),
	}
}

type failureView struct {
	Index     int              `json:"index"`
	Operation fileop.Operation `json:"operation"`
	Error     string           `json:"error"`
}

func failureViews(fs []fileop.Failure) []failureView {
	out := make([]failureView, 0, len(fs))
	for _, f := range fs {
		out = append(out, failureView{Index: f.Index, Operation: f.Op, Error: f.Err.Error()})
	}
	return out
}

type treeView struct {
	Version  int           `json:"version"`
	Tree     *vfs.Tree     `json:"tree,omitempty"`
	Applied  int           `json:"applied,omitempty"`
	Failures []failureView `json:"failures,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, studio.ErrWorkspaceNotFound),
		errors.Is(err, task.ErrNotFound),
		errors.Is(err, vfs.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, stream.ErrPayloadParse),
		errors.Is(err, sandbox.ErrUnknownTab):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", errBadRequest, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*studio.Workspace, bool) {
	ws, err := s.studio.Registry().Resolve(r.PathValue("ws"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return ws, true
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list := s.studio.Registry().List()
	out := make([]workspaceView, 0, len(list))
	for _, ws := range list {
		out = append(out, viewOf(ws))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	ws, err := s.studio.Registry().Create(r.Context(), body.Name)
	if err != nil {
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(ws))
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := s.studio.Registry().Delete(r.Context(), ws.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	tree, version := ws.Tree()
	writeJSON(w, http.StatusOK, treeView{Version: version, Tree: tree})
}

// handleOperations applies a hand-written operations document of the form
// {"operations": [...]}.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	ops, err := stream.DecodeOperations(string(data))
	if err != nil {
		writeError(w, err)
		return
	}

	res, version, err := s.studio.Apply(r.Context(), ws.ID, ops)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treeView{
		Version:  version,
		Applied:  res.Applied,
		Failures: failureViews(res.Failures),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Tasks.All())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	t, err := ws.Tasks.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handlePrompt starts a user task and streams it in the background. The
// response carries the running task; progress arrives on observer sockets.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Prompt == "" {
		writeError(w, fmt.Errorf("%w: prompt is required", errBadRequest))
		return
	}

	t, err := s.studio.Begin(r.Context(), ws.ID, body.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	s.runRound(ws.ID, t.ID)
	writeJSON(w, http.StatusAccepted, t)
}

// handleApprove resolves a pending task. An approved blueprint comes back
// running and its next round is streamed in the background.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	t, err := s.studio.Approve(r.Context(), ws.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if t.Status == task.StatusRunning {
		s.runRound(ws.ID, t.ID)
		status = http.StatusAccepted
	}
	writeJSON(w, status, t)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	t, err := s.studio.Reject(r.Context(), ws.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type toggleBody struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAutopilot(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body toggleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.studio.SetAutopilot(r.Context(), ws.ID, body.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ws))
}

// handleSelector arms or disarms the element picker in the preview surface.
func (s *Server) handleSelector(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body toggleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := ws.Sandbox.SetSelecting(body.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleBody{Enabled: ws.Sandbox.Selecting()})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Sandbox.ClearSelection(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tabBody struct {
	Tab sandbox.Tab `json:"tab"`
}

// handleTab records the panel the user is looking at, so the first console
// error raises the console only when another panel is in front.
func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body tabBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.studio.SetTab(r.Context(), ws.ID, body.Tab); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tabBody{Tab: ws.Sandbox.ActiveTab()})
}

type logsView struct {
	ActiveTab sandbox.Tab        `json:"activeTab"`
	Selection *sandbox.Selection `json:"selection,omitempty"`
	Entries   []sandbox.LogEntry `json:"entries"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	entries := ws.Sandbox.Logs()
	if entries == nil {
		entries = []sandbox.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logsView{
		ActiveTab: ws.Sandbox.ActiveTab(),
		Selection: ws.Sandbox.Selection(),
		Entries:   entries,
	})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	ws.Sandbox.ClearLogs()
	w.WriteHeader(http.StatusNoContent)
}

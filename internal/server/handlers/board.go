package handlers

import (
	"net/http"

	"github.com/agentstation/boardstream/internal/auth"
	"github.com/agentstation/boardstream/internal/board"
	"github.com/agentstation/boardstream/internal/server/middleware"
	"github.com/agentstation/boardstream/internal/server/response"
)

type statusRequest struct {
	Status string `json:"status"`
}

type commentRequest struct {
	Body string `json:"body"`
}

type startRunRequest struct {
	Name string `json:"name,omitempty"`
}

type finishRunRequest struct {
	RunID string `json:"runId"`
	Error string `json:"error,omitempty"`
}

// actor is the subject of the verified token on the request.
func actor(r *http.Request) string {
	if p, ok := middleware.PrincipalFrom(r.Context()); ok {
		return p.Subject
	}
	return auth.Anonymous
}

// HandleListTasks handles GET /api/v1/tasks.
// @Summary List tasks
// @Tags board
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]events.Task}
// @Router /api/v1/tasks [get].
func (h *Handlers) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.board.Tasks(r.Context()))
}

// HandleCreateTask handles POST /api/v1/tasks.
// @Summary Create a task
// @Tags board
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body board.NewTask true "Task"
// @Success 201 {object} response.Response{data=events.Task}
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/v1/tasks [post].
func (h *Handlers) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req board.NewTask
	if !decode(w, r, &req) {
		return
	}
	task, err := h.board.CreateTask(r.Context(), actor(r), req)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.Created(w, task)
}

// HandleGetTask handles GET /api/v1/tasks/{id}.
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.board.Task(r.Context(), r.PathValue("id"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, task)
}

// HandleUpdateTask handles PATCH /api/v1/tasks/{id}.
// @Summary Update a task
// @Tags board
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body board.TaskPatch true "Fields to change"
// @Success 200 {object} response.Response{data=events.Task}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/tasks/{id} [patch].
func (h *Handlers) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch board.TaskPatch
	if !decode(w, r, &patch) {
		return
	}
	task, err := h.board.UpdateTask(r.Context(), actor(r), r.PathValue("id"), patch)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, task)
}

// HandleSetStatus handles PUT /api/v1/tasks/{id}/status.
func (h *Handlers) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	task, err := h.board.SetStatus(r.Context(), actor(r), r.PathValue("id"), req.Status)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, task)
}

// HandleDeleteTask handles DELETE /api/v1/tasks/{id}.
func (h *Handlers) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.board.DeleteTask(r.Context(), actor(r), r.PathValue("id")); err != nil {
		response.ErrorFromType(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListComments handles GET /api/v1/tasks/{id}/comments.
func (h *Handlers) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.board.Comments(r.Context(), r.PathValue("id"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, comments)
}

// HandleAddComment handles POST /api/v1/tasks/{id}/comments.
func (h *Handlers) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decode(w, r, &req) {
		return
	}
	comment, err := h.board.AddComment(r.Context(), actor(r), r.PathValue("id"), req.Body)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.Created(w, comment)
}

// HandleStartCronRun handles POST /api/v1/cron-jobs/{id}/runs.
func (h *Handlers) HandleStartCronRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	run, err := h.board.StartCronRun(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.Created(w, run)
}

// HandleCompleteCronRun handles POST /api/v1/cron-jobs/{id}/runs/complete.
func (h *Handlers) HandleCompleteCronRun(w http.ResponseWriter, r *http.Request) {
	h.finishCronRun(w, r, false)
}

// HandleFailCronRun handles POST /api/v1/cron-jobs/{id}/runs/fail.
func (h *Handlers) HandleFailCronRun(w http.ResponseWriter, r *http.Request) {
	h.finishCronRun(w, r, true)
}

func (h *Handlers) finishCronRun(w http.ResponseWriter, r *http.Request, failed bool) {
	var req finishRunRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RunID == "" {
		response.BadRequest(w, "runId is required", "")
		return
	}

	failure := ""
	if failed {
		failure = req.Error
		if failure == "" {
			failure = "job failed"
		}
	}
	run, err := h.board.FinishCronRun(r.Context(), req.RunID, failure)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	if run.JobID != r.PathValue("id") {
		h.logger.Warn().
			Str("job_id", r.PathValue("id")).
			Str("run_job_id", run.JobID).
			Msg("Cron run finished under a different job")
	}
	response.OK(w, run)
}

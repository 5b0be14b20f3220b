package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/whitedemon938/Turnstile-Solver/config"
	"github.com/whitedemon938/Turnstile-Solver/models"
	"github.com/whitedemon938/Turnstile-Solver/solver"
	"github.com/whitedemon938/Turnstile-Solver/taskstore"
	"github.com/whitedemon938/Turnstile-Solver/webhook"
)

// taskDeadline bounds a background solve so an abandoned task cannot hold a
// browser slot forever.
const taskDeadline = 5 * time.Minute

// Turnstile returns a handler for GET /turnstile, the async task surface:
// the solve is kicked off in the background and a task id comes back
// immediately with 202.
//
// Query parameters: url, sitekey (required); action, cdata, webhook_url.
func Turnstile(sv *solver.Solver, ts *taskstore.Store, webhookCfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &models.SolveRequest{
			URL:        c.Query("url"),
			SiteKey:    c.Query("sitekey"),
			Action:     c.Query("action"),
			CData:      c.Query("cdata"),
			WebhookURL: c.Query("webhook_url"),
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		task := ts.Create()
		go runTask(sv, ts, webhookCfg, task.ID, req)

		c.JSON(http.StatusAccepted, models.TaskResponse{TaskID: task.ID})
	}
}

// Result returns a handler for GET /result?id=<task_id>.
//
// Responses: 200 with the task (pending or solved), 422 when the solve
// terminated without a token, 400 for a missing or unknown id.
func Result(ts *taskstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		task := ts.Get(id)
		if id == "" || task == nil {
			c.JSON(http.StatusBadRequest, models.SolveResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "invalid task id",
				},
			})
			return
		}

		status := http.StatusOK
		if task.Result != nil && task.Result.Status != models.StatusSuccess {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, task)
	}
}

// runTask executes a background solve, records the terminal result and
// fires the optional webhook.
func runTask(sv *solver.Solver, ts *taskstore.Store, webhookCfg config.WebhookConfig, taskID string, req *models.SolveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), taskDeadline)
	defer cancel()

	result, err := sv.Solve(ctx, req)
	if err != nil {
		// Acquisition failed; present it as a terminal error result so
		// pollers of /result see the same shape either way.
		result = &models.SolveResult{
			Status: models.StatusError,
			Reason: err.Error(),
		}
	}
	ts.Complete(taskID, result)

	if req.WebhookURL == "" {
		return
	}
	eventType := webhook.EventTaskFailed
	if result.Status == models.StatusSuccess {
		eventType = webhook.EventTaskCompleted
	}
	slog.Debug("dispatching task webhook", "task", taskID, "event", eventType)
	webhook.DeliverAsync(req.WebhookURL, webhookCfg.Secret, &webhook.Event{
		Type:      eventType,
		TaskID:    taskID,
		Timestamp: time.Now().Unix(),
		Data:      result,
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whitedemon938/Turnstile-Solver/models"
	"github.com/whitedemon938/Turnstile-Solver/solver"
)

// Solve returns a handler for POST /api/v1/solve.
//
// The solve runs synchronously on the request goroutine: the resolver
// suspends on pool acquisition and polling sleeps, so concurrent requests
// interleave across the browser pool without extra plumbing.
func Solve(sv *solver.Solver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SolveResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		result, err := sv.Solve(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		status := http.StatusOK
		if result.Status != models.StatusSuccess {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, models.SolveResponse{
			Success: result.Status == models.StatusSuccess,
			Result:  result,
		})
	}
}

// respondError maps a SolveError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	solveErr, ok := err.(*models.SolveError)
	if !ok {
		solveErr = models.NewSolveError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(solveErr), models.SolveResponse{
		Success: false,
		Error:   solveErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.SolveError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodePoolTimeout:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

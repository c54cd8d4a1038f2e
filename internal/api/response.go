package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

type jobResponse struct {
	ID              string                  `json:"id"`
	CompanyName     string                  `json:"company_name"`
	Status          model.AnalysisStatus    `json:"status"`
	Decision        *model.AnalysisDecision `json:"decision"`
	Confidence      *float64                `json:"confidence"`
	Summary         *string                 `json:"summary"`
	ErrorMessage    *string                 `json:"error_message"`
	ErrorDetails    map[string]any          `json:"error_details"`
	FinishedAt      *time.Time              `json:"finished_at"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	Documents       []model.Document        `json:"documents"`
	Inconsistencies []findingResponse       `json:"inconsistencies"`
}

type findingResponse struct {
	ID         string         `json:"id"`
	Code       string         `json:"code"`
	Severity   model.Severity `json:"severity"`
	Message    string         `json:"message"`
	Pointers   model.Pointers `json:"pointers"`
	DocumentID *string        `json:"document_id"`
}

func newJobResponse(view model.JobView) jobResponse {
	job := view.Job
	resp := jobResponse{
		ID:              job.ID,
		CompanyName:     job.CompanyName,
		Status:          job.Status,
		Decision:        job.Decision,
		Confidence:      job.Confidence,
		Summary:         job.Summary,
		FinishedAt:      job.FinishedAt,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		Documents:       view.Documents,
		Inconsistencies: make([]findingResponse, 0, len(view.Findings)),
	}
	if resp.Documents == nil {
		resp.Documents = []model.Document{}
	}
	if job.Error != nil {
		msg := job.Error.Message
		resp.ErrorMessage = &msg
		resp.ErrorDetails = map[string]any{"code": job.Error.Code}
		for k, v := range job.Error.Details {
			resp.ErrorDetails[k] = v
		}
	}
	for _, f := range view.Findings {
		resp.Inconsistencies = append(resp.Inconsistencies, findingResponse{
			ID:         f.ID,
			Code:       f.Code,
			Severity:   f.Severity,
			Message:    f.Message,
			Pointers:   f.Pointers(),
			DocumentID: f.DocumentID,
		})
	}
	return resp
}

func errorBody(code, message string, details map[string]any) gin.H {
	if details == nil {
		details = map[string]any{}
	}
	return gin.H{"error": gin.H{"code": code, "message": message, "details": details}}
}

// writeError maps classified errors to a status code. Unclassified errors are
// logged and reported as a generic 500.
func (s *Server) writeError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		s.log.Error("api.request.error", "path", c.FullPath(), "error", err,
			"correlation_id", logging.CorrelationID(c.Request.Context()))
		c.JSON(http.StatusInternalServerError, errorBody("internal_error", "internal server error", nil))
		return
	}
	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindExternalService:
		status = http.StatusBadGateway
	}
	details := appErr.Details
	if appErr.Kind == apperr.KindExternalService || appErr.Kind == apperr.KindProcessing {
		// Collaborator error strings stay in the logs.
		details = map[string]any{}
		for k, v := range appErr.Details {
			if k != "original_error" && k != "original_error_type" {
				details[k] = v
			}
		}
		s.log.Warn("api.request.error", "path", c.FullPath(), "code", appErr.Code, "error", err,
			"correlation_id", logging.CorrelationID(c.Request.Context()))
	}
	c.JSON(status, errorBody(appErr.Code, appErr.Message, details))
}

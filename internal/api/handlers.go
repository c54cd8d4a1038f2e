package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/intake"
	"github.com/dharsanguruparan/docvalidator/internal/model"
	"github.com/dharsanguruparan/docvalidator/internal/report"
	"github.com/dharsanguruparan/docvalidator/internal/signing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// formOverhead leaves room for the multipart boundaries and text fields.
const formOverhead = 1 << 20

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreate(c *gin.Context) {
	limit := int64(len(model.DocumentTypes))*s.cfg.MaxFileSize + formOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(c, apperr.Validation(apperr.CodeValidation, "documents",
				fmt.Sprintf("request exceeds %d bytes", limit)))
			return
		}
		s.writeError(c, apperr.Validation(apperr.CodeValidation, "", "expecting a multipart/form-data body"))
		return
	}

	req := intake.Request{CompanyName: firstValue(form, "company_name")}
	for _, dt := range model.DocumentTypes {
		headers := form.File[strings.ToLower(string(dt))]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			s.writeError(c, apperr.Validation(apperr.CodeValidation, strings.ToLower(string(dt)), "unreadable file"))
			return
		}
		defer f.Close()
		req.Uploads = append(req.Uploads, intake.Upload{
			DocumentType: dt,
			Filename:     fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Body:         f,
		})
	}

	job, err := s.creator.Create(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (s *Server) handleGet(c *gin.Context) {
	view, err := s.reader.View(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(view))
}

func (s *Server) handleReport(c *gin.Context) {
	view, err := s.reader.View(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	data, err := report.XLSX(view)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="analysis-%s.xlsx"`, view.Job.ID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (s *Server) handleSignedURL(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")
	docType, ok := model.ParseDocumentType(strings.ToUpper(c.Param("document_type")))
	if !ok {
		s.writeError(c, apperr.Validation(apperr.CodeInvalidDocType, "document_type",
			fmt.Sprintf("unknown document type %q", c.Param("document_type"))))
		return
	}
	view, err := s.reader.View(ctx, jobID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	var doc *model.Document
	for i := range view.Documents {
		if view.Documents[i].DocumentType == docType {
			doc = &view.Documents[i]
			break
		}
	}
	if doc == nil {
		s.writeError(c, apperr.NotFound(apperr.CodeDocumentNotFound, "document", jobID+"/"+string(docType)))
		return
	}

	ttl := s.cfg.SignedURLTTL
	url, expiresAt := s.signer.URL("/v1/files/"+doc.ID, doc.ID, ttl)
	resp := gin.H{
		"document_id": doc.ID,
		"url":         url,
		"expires_at":  expiresAt.Format(time.RFC3339),
	}
	if p, ok := s.files.(Presigner); ok {
		direct, err := p.PresignURL(ctx, doc.ObjectKey, ttl)
		if err != nil {
			s.log.Warn("api.presign_error", "document_id", doc.ID, "error", err)
		} else {
			resp["storage_url"] = direct
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDownload(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("document_id")
	expires := c.Query("expires")
	signature := c.Query("signature")
	if expires == "" || signature == "" {
		s.writeError(c, apperr.Validation(apperr.CodeValidation, "signature", "expires and signature are required"))
		return
	}
	switch err := s.signer.Verify(id, expires, signature); {
	case errors.Is(err, signing.ErrExpired):
		c.JSON(http.StatusGone, errorBody("signed_url_expired", "signed link expired", nil))
		return
	case err != nil:
		c.JSON(http.StatusForbidden, errorBody("invalid_signature", "signature does not match", nil))
		return
	}

	doc, err := s.reader.GetDocument(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	data, err := s.files.Load(ctx, doc.ObjectKey)
	if err != nil {
		s.writeError(c, err)
		return
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, contentType, data)
}

func firstValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

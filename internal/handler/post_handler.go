package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/errs"
	"github.com/trashposts/post-search/internal/service"
	"github.com/trashposts/post-search/internal/validator"
)

type PostHandler struct {
	svc       service.PostServicer
	validator *validator.Validator
	log       *zap.Logger
}

func NewPostHandler(svc service.PostServicer, log *zap.Logger) *PostHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostHandler{
		svc:       svc,
		validator: validator.New(),
		log:       log,
	}
}

// AdvancedSearchRequest is the POST /api/search body.
type AdvancedSearchRequest struct {
	Query   string                        `json:"query"`
	Filters map[string]service.FilterSpec `json:"filters"`
}

// Search GET /api/search?query=...
func (h *PostHandler) Search(c *gin.Context) {
	q := c.Query("query")
	if err := h.validator.ValidateSearchQuery(q); err != nil {
		errs.HandleError(c, errs.Wrap(errs.ErrValidation, "invalid query", err))
		return
	}

	result, err := h.svc.Search(c.Request.Context(), &service.SearchRequest{
		Query: q,
		Mode:  service.ModeMultiMatch,
	})
	if err != nil {
		errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdvancedSearch POST /api/search with {query, filters}
func (h *PostHandler) AdvancedSearch(c *gin.Context) {
	var in AdvancedSearchRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		errs.HandleError(c, errs.Wrap(errs.ErrBadRequest, "invalid body", err))
		return
	}
	if err := h.validator.ValidateSearchQuery(in.Query); err != nil {
		errs.HandleError(c, errs.Wrap(errs.ErrValidation, "invalid query", err))
		return
	}
	filters, err := service.ParseFilters(in.Filters)
	if err != nil {
		errs.HandleError(c, err)
		return
	}

	result, err := h.svc.Search(c.Request.Context(), &service.SearchRequest{
		Query:   in.Query,
		Mode:    service.ModeSimpleQueryString,
		Filters: filters,
	})
	if err != nil {
		errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Delete DELETE /api/delete/:id
func (h *PostHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.validator.ValidatePostID(id); err != nil {
		errs.HandleError(c, errs.Wrap(errs.ErrValidation, "invalid post id", err))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Post %s deleted", id),
	})
}

// Similar GET /api/similar/:id
func (h *PostHandler) Similar(c *gin.Context) {
	id := c.Param("id")
	if err := h.validator.ValidatePostID(id); err != nil {
		errs.HandleError(c, errs.Wrap(errs.ErrValidation, "invalid post id", err))
		return
	}
	result, err := h.svc.FindSimilar(c.Request.Context(), id)
	if err != nil {
		errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Import POST /api/import, multipart field "file"
func (h *PostHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errs.HandleError(c, errs.New(errs.ErrPayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit)))
			return
		}
		errs.HandleError(c, errs.Wrap(errs.ErrBadRequest, "multipart field \"file\" is required", err))
		return
	}
	if err := h.validator.ValidateImportFile(fh.Filename); err != nil {
		errs.HandleError(c, errs.Wrap(errs.ErrUnsupportedFile, "unsupported file", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		errs.HandleError(c, errs.Wrap(errs.ErrInternal, "open upload", err))
		return
	}
	defer f.Close()

	report, err := h.svc.Import(c.Request.Context(), f)
	if err != nil {
		errs.HandleError(c, err)
		return
	}
	h.log.Info("import accepted",
		zap.String("file", fh.Filename),
		zap.Int64("size", fh.Size),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed))
	c.JSON(http.StatusOK, report)
}

// Random GET /api/random
func (h *PostHandler) Random(c *gin.Context) {
	hit, err := h.svc.Random(c.Request.Context())
	if err != nil {
		errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, hit)
}

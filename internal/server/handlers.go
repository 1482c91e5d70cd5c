package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clemens-chr/tuner/internal/domain"
	"github.com/clemens-chr/tuner/internal/instructor"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Multimodal Instructor API", "status": "online"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "multimodal-instructor"})
}

// handleProcess accepts a multipart request with optional text, images and
// video, and answers with the routing decision.
func (s *Server) handleProcess(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	text := c.PostForm("text")
	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart body: %v", err)})
		return
	}

	var images [][]byte
	var video []byte
	if form != nil {
		for _, fh := range form.File["images"] {
			if !allowedType(fh, s.cfg.AllowedImageTypes) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported image type %q", fh.Header.Get("Content-Type"))})
				return
			}
			data, err := readUpload(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("reading image upload: %v", err)})
				return
			}
			images = append(images, data)
		}
		if files := form.File["video"]; len(files) > 0 {
			fh := files[0]
			if !allowedType(fh, s.cfg.AllowedVideoTypes) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported video type %q", fh.Header.Get("Content-Type"))})
				return
			}
			video, err = readUpload(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("reading video upload: %v", err)})
				return
			}
		}
	}

	if text == "" && len(images) == 0 && len(video) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of text, images or video is required"})
		return
	}

	decision, err := s.ins.ProcessRequest(c.Request.Context(), instructor.Request{
		Text:   text,
		Images: images,
		Video:  video,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

type newTaskRequest struct {
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description" binding:"required"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req newTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid task payload: %v", err)})
		return
	}
	receipt, err := s.ins.SaveTask(c.Request.Context(), instructor.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleGetEntry(c *gin.Context) {
	entry, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleUpdateEntry(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid update payload: %v", err)})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty update set"})
		return
	}
	ok, err := s.store.Update(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found or no updatable fields", "kind": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	ok, err := s.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found", "kind": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// writeError maps core failures to HTTP responses: absence is 404, everything
// else is a 500 whose body names the failure kind and, when known, the
// pipeline stage. Stack traces never leave the process.
func (s *Server) writeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found", "kind": "not_found"})
		return
	}
	body := gin.H{"error": err.Error(), "kind": errorKind(err)}
	var stageErr *instructor.StageError
	if errors.As(err, &stageErr) {
		body["stage"] = stageErr.Stage
	}
	s.log.WithError(err).Error("request failed")
	c.JSON(http.StatusInternalServerError, body)
}

func errorKind(err error) string {
	var (
		extractionErr *domain.ExtractionError
		serviceErr    *domain.ServiceError
		dimensionErr  *domain.DimensionMismatchError
		indexErr      *domain.IndexWriteError
	)
	switch {
	case errors.Is(err, domain.ErrEmbeddingTimeout):
		return "embedding_timeout"
	case errors.As(err, &extractionErr):
		return "extraction_error"
	case errors.As(err, &serviceErr):
		return "embedding_service_error"
	case errors.As(err, &dimensionErr):
		return "dimension_mismatch"
	case errors.As(err, &indexErr):
		return "index_write_error"
	default:
		return "internal"
	}
}

func allowedType(fh *multipart.FileHeader, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ct := fh.Header.Get("Content-Type")
	for _, t := range allowed {
		if ct == t {
			return true
		}
	}
	return false
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

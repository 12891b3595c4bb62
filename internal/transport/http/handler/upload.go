package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"webinfinitygen/internal/blob"
	"webinfinitygen/internal/transport/http/response"
)

type BlobStore interface {
	PutImageDataURI(ctx context.Context, dataURI, name string) (*blob.Object, error)
	PutJSON(ctx context.Context, value any, name string) (*blob.Object, error)
	Delete(ctx context.Context, name string) error
	Presign(ctx context.Context, name string, ttl time.Duration) (string, error)
}

type UploadHandler struct {
	blobs BlobStore
}

type UploadImageRequest struct {
	Base64Data string `json:"base64Data" binding:"required"`
	FileName   string `json:"fileName"`
}

type UploadJSONRequest struct {
	JSONData json.RawMessage `json:"jsonData" binding:"required"`
	FileName string          `json:"fileName"`
}

func NewUploadHandler(blobs BlobStore) *UploadHandler {
	return &UploadHandler{blobs: blobs}
}

func (h *UploadHandler) PutImage(c *gin.Context) {
	var req UploadImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "base64Data is required")
		return
	}

	obj, err := h.blobs.PutImageDataURI(c.Request.Context(), req.Base64Data, req.FileName)
	if err != nil {
		response.FromError(c, err, "upload image failed")
		return
	}
	response.OK(c, "image uploaded", obj)
}

func (h *UploadHandler) PutJSON(c *gin.Context) {
	var req UploadJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil || string(req.JSONData) == "null" {
		response.Error(c, http.StatusBadRequest, "jsonData is required")
		return
	}

	obj, err := h.blobs.PutJSON(c.Request.Context(), req.JSONData, req.FileName)
	if err != nil {
		response.FromError(c, err, "upload json failed")
		return
	}
	response.OK(c, "json uploaded", obj)
}

func (h *UploadHandler) Delete(c *gin.Context) {
	if err := h.blobs.Delete(c.Request.Context(), c.Param("objectName")); err != nil {
		response.FromError(c, err, "delete object failed")
		return
	}
	response.OK(c, "object deleted", nil)
}

// Presign takes the lifetime in seconds from ?ttl; absent means the store
// default.
func (h *UploadHandler) Presign(c *gin.Context) {
	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			response.Error(c, http.StatusBadRequest, "ttl must be a positive number of seconds")
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	url, err := h.blobs.Presign(c.Request.Context(), c.Param("objectName"), ttl)
	if err != nil {
		response.FromError(c, err, "presign failed")
		return
	}
	response.OK(c, "presigned url created", gin.H{"url": url})
}

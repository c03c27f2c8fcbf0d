package handler

import (
	"fmt"
	"io"
	"net/http"

	"foodshare-api/model"
	"foodshare-api/storage"

	"github.com/gin-gonic/gin"
)

// ImageHandler accepts listing photos and streams them back.
type ImageHandler struct {
	Images storage.ImageStore
}

func (h *ImageHandler) RegisterRoutes(public, authed *gin.RouterGroup) {
	authed.POST("/images", h.Upload)
	public.GET("/images/:id", h.Download)
}

// POST /api/v1/images (multipart, field "file")
func (h *ImageHandler) Upload(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > storage.MaxImageBytes {
		respondError(c, fmt.Errorf("%w: image must be at most %d MB", model.ErrValidation, storage.MaxImageBytes>>20))
		return
	}
	contentType, err := storage.CheckContentType(fileHeader.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot open file"})
		return
	}
	defer file.Close()

	img, err := h.Images.Upload(c.Request.Context(), io.LimitReader(file, storage.MaxImageBytes), contentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

// GET /api/v1/images/:id
func (h *ImageHandler) Download(c *gin.Context) {
	r, contentType, err := h.Images.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer r.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, r, nil)
}

package controllers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"accreditation-api/config"
	"accreditation-api/models"
	"accreditation-api/services"
	"accreditation-api/utils"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 10 << 20

var allowedUploadTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"image/jpeg": true,
	"image/png":  true,
	"text/plain": true,
}

// readUpload opens the "document" multipart field after checking its size and type.
func readUpload(c *gin.Context) (services.Upload, io.Closer, bool) {
	file, header, err := c.Request.FormFile("document")
	if err != nil {
		badRequest(c, "Please upload a file")
		return services.Upload{}, nil, false
	}
	if header.Size > maxUploadBytes {
		file.Close()
		badRequest(c, "File size cannot exceed 10MB")
		return services.Upload{}, nil, false
	}
	mimeType := header.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !allowedUploadTypes[strings.TrimSpace(mimeType)] {
		file.Close()
		badRequest(c, "Invalid file type. Only PDF, Word, Excel, images and text files are allowed")
		return services.Upload{}, nil, false
	}
	return services.Upload{
		Reader:       file,
		OriginalName: header.Filename,
		Size:         header.Size,
		MimeType:     strings.TrimSpace(mimeType),
	}, file, true
}

// UploadDocument stores a new document for the caller's institute.
func (h *Handler) UploadDocument(c *gin.Context) {
	up, closer, ok := readUpload(c)
	if !ok {
		return
	}
	defer closer.Close()

	doc, err := h.app.Documents.Create(c.Request.Context(), actor(c), services.CreateDocumentInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Type:        c.PostForm("type"),
		Category:    c.PostForm("category"),
		Priority:    c.PostForm("priority"),
		Tags:        utils.SplitTags(c.PostForm("tags")),
	}, up, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Document uploaded successfully",
		"data":    gin.H{"document": doc},
	})
}

// ReuploadDocument replaces the file of a returned document and keeps the old one in its history.
func (h *Handler) ReuploadDocument(c *gin.Context) {
	up, closer, ok := readUpload(c)
	if !ok {
		return
	}
	defer closer.Close()

	doc, err := h.app.Documents.Reupload(c.Request.Context(), actor(c), c.Param("id"), up, c.PostForm("reason"), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Document re-uploaded successfully", gin.H{"document": doc})
}

func (h *Handler) GetDocuments(c *gin.Context) {
	page, err := h.app.Documents.List(c.Request.Context(), actor(c), services.DocumentFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Search: c.Query("search"),
		Page:   pageFrom(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

func (h *Handler) GetAssignedDocuments(c *gin.Context) {
	docs, err := h.app.Documents.ListAssigned(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.app.Documents.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"document": doc})
}

func (h *Handler) UpdateDocument(c *gin.Context) {
	var req struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid document data")
		return
	}

	doc, err := h.app.Documents.Update(c.Request.Context(), actor(c), c.Param("id"), services.DocumentPatch{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "Document updated successfully", gin.H{"document": doc})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.app.Documents.Delete(c.Request.Context(), actor(c), c.Param("id"), requestContext(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Document deleted successfully", nil)
}

// DownloadDocument streams the stored file back as an attachment.
func (h *Handler) DownloadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.app.Documents.Download(ctx, actor(c), c.Param("id"), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	body, err := h.app.Documents.OpenFile(ctx, doc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer body.Close()

	name := strings.ReplaceAll(doc.File.OriginalName, `"`, "")
	c.DataFromReader(http.StatusOK, doc.File.FileSize, doc.File.MimeType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=\"%s\"", name),
	})
}

func (h *Handler) GetDocumentHistory(c *gin.Context) {
	history, err := h.app.Documents.History(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, history)
}

// UpdateDocumentStatus is the admin override that bypasses the transition table.
func (h *Handler) UpdateDocumentStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide a status")
		return
	}

	doc, err := h.app.Documents.OverrideStatus(c.Request.Context(), actor(c), c.Param("id"), models.DocumentStatus(req.Status), req.Notes, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	config.Log.Infow("document status overridden", "document", doc.ID, "status", doc.Status)
	respondMessage(c, "Document status updated successfully", gin.H{"document": doc})
}

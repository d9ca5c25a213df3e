package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"energenius/pkg/models"
	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
)

// multipartOverhead はファイル本体以外のmultipartヘッダー分の余裕
const multipartOverhead = 64 << 10

// UploadHandler はExcel/CSVファイルのアップロードを処理します。
type UploadHandler struct {
	uploads  *services.UploadStore
	maxBytes int64
}

// NewUploadHandler は新しいUploadHandlerを生成します。
func NewUploadHandler(uploads *services.UploadStore, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxBytes: maxBytes}
}

// Upload はファイルを検証して保存し、プレビューと統計量を返します。
func (h *UploadHandler) Upload(c *gin.Context) {
	start := time.Now()
	user := currentUser(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "File is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No file provided"})
		return
	}
	defer file.Close()

	fileName := filepath.Base(strings.ReplaceAll(fileHeader.Filename, "\\", "/"))
	if fileName == "" || fileName == "." || fileName == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No file selected"})
		return
	}
	if !services.IsSupportedFileName(fileName) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": services.ErrUnsupportedFormat.Error()})
		return
	}
	if fileHeader.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "File is too large"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Upload failed: " + err.Error()})
		return
	}

	sheet, err := services.ReadSheet(fileName, data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Validation failed: Failed to read file: " + err.Error()})
		return
	}
	if errs := services.ValidateStructure(sheet); len(errs) > 0 {
		log.Printf("⚠️ [upload] %s の検証に失敗 (%d件)", fileName, len(errs))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Validation failed: " + strings.Join(errs, "; ")})
		return
	}

	stored := h.uploads.Save(fileName, user.Username, data)
	log.Printf("📊 [upload] %s を保存しました (id=%s, %d bytes, %v)", fileName, stored.ID, len(data), time.Since(start))

	c.JSON(http.StatusOK, models.APIResponse[models.UploadData]{
		Success: true,
		Data: models.UploadData{
			FileID:     stored.ID,
			FileName:   fileName,
			Preview:    sheet.Preview(),
			Statistics: sheet.Statistics(),
		},
	})
}

func formatFileSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	}
	return fmt.Sprintf("%d B", size)
}

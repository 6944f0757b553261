package common

import (
	"errors"
	"mime/multipart"
	"net/http"

	appcommon "github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/storage"

	"github.com/gin-gonic/gin"
)

// multipartOverhead 表单字段和分隔符的余量
const multipartOverhead = 1 << 20

// LimitUploadBody 按文件上限加余量限制请求体，超出部分不再读取
func LimitUploadBody(maxFileSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxFileSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFileSize+multipartOverhead)
		}
		c.Next()
	}
}

// FormUpload 读取 multipart 文件字段；字段不存在时返回 nil。
// 返回的 closer 需要在处理结束后调用。
func FormUpload(c *gin.Context, field string) (*storage.Upload, func(), error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, func() {}, appcommon.PayloadTooLarge("Request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, func() {}, nil
		}
		return nil, func() {}, appcommon.Validation("Invalid file upload")
	}
	return uploadFrom(file, header), func() { _ = file.Close() }, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) *storage.Upload {
	return &storage.Upload{
		Name:    header.Filename,
		Size:    header.Size,
		Content: file,
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// defaultMaxBodySize bounds request bodies when no limit is configured.
// Ledger payloads are small JSON documents (payments, fee structures,
// enrollment records), so 1MB leaves generous headroom.
const defaultMaxBodySize int64 = 1 << 20

// BodyLimit rejects requests whose declared Content-Length exceeds maxBytes
// and wraps the body with http.MaxBytesReader so chunked requests cannot
// stream past the limit either. A non-positive maxBytes falls back to
// defaultMaxBodySize.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodySize
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "REQUEST_TOO_LARGE",
					"message": "Request body exceeds maximum allowed size",
				},
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

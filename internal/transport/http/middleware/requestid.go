package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-table-identity/internal/core/tablestorage"
)

const KeyRequestID = "X-Request-ID"

// RequestID 透传或生成请求 ID，并作为 x-ms-client-request-id 带到表存储
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(KeyRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Header(KeyRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Request = c.Request.WithContext(tablestorage.WithClientRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

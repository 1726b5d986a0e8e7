// Package httputils 提供 HTTP 处理器的通用响应写入工具。
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/paperqa/pkg/middleware"
	"github.com/kart-io/paperqa/pkg/utils/errors"
	"github.com/kart-io/paperqa/pkg/utils/response"
)

// WriteResponse 将结果写回客户端。
// err 非空时写入错误响应，否则写入 data；两种情况都带上请求 ID。
func WriteResponse(c *gin.Context, err error, data interface{}) {
	requestID := middleware.GetRequestID(c.Request.Context())

	if err != nil {
		var resp *response.Response
		if errno, ok := err.(*errors.Errno); ok {
			resp = response.Err(errno)
		} else {
			resp = response.Err(errors.ErrInternal.WithMessage(err.Error()))
		}
		c.JSON(resp.HTTPStatus(), resp.WithRequestID(requestID))
		return
	}

	resp := response.Success(data).WithRequestID(requestID)
	c.JSON(resp.HTTPStatus(), resp)
}

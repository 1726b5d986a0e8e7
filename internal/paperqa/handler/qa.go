// Package handler provides HTTP handlers for the paperqa service.
package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/paperqa/internal/paperqa/biz"
	"github.com/kart-io/paperqa/internal/paperqa/metrics"
	"github.com/kart-io/paperqa/internal/pkg/httputils"
	apierrors "github.com/kart-io/paperqa/pkg/utils/errors"
	"github.com/kart-io/paperqa/pkg/validator"
)

// QAHandler handles paper question answering requests.
type QAHandler struct {
	service *biz.Service
}

// NewQAHandler creates a new QAHandler.
func NewQAHandler(service *biz.Service) *QAHandler {
	return &QAHandler{service: service}
}

// AskRequest 问答请求体。pdf_content 为已抽取的文档文本，
// 可选 base64 编码。
type AskRequest struct {
	Query      string `json:"query" validate:"required,notblank"`
	PDFContent string `json:"pdf_content"`
}

// Ask 执行五阶段问答流水线，以 SSE 流式返回答案。
// 进入流式之后的一切错误都以用户语言的错误片段出现在流内，
// HTTP 状态码始终为 200。
func (h *QAHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, apierrors.ErrInvalidParam.WithMessage(err.Error()), nil)
		return
	}

	lang := validator.LangEN
	if biz.DetectLanguage(req.Query) == biz.LanguageZH {
		lang = validator.LangZH
	}
	if verrs := validator.Global().ValidateWithLang(&req, lang); verrs != nil {
		httputils.WriteResponse(c, apierrors.ErrInvalidParam.WithMessage(verrs.First()), nil)
		return
	}
	if strings.TrimSpace(req.PDFContent) == "" {
		httputils.WriteResponse(c, apierrors.ErrEmptyDocument, nil)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	// 反向代理不得缓冲 SSE 帧
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for frame := range h.service.RunPipeline(c.Request.Context(), req.Query, req.PDFContent) {
		if _, err := io.WriteString(c.Writer, frame); err != nil {
			logger.Warnw("Client connection lost during stream", "error", err.Error())
			return
		}
		c.Writer.Flush()
	}
}

// Health returns service liveness.
func (h *QAHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "paperqa",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Metrics exposes pipeline counters in Prometheus text format.
func (h *QAHandler) Metrics(c *gin.Context) {
	text := metrics.GetPipelineMetrics().Export("paperqa", "pipeline")
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(text))
}

// Stats returns pipeline statistics as JSON.
func (h *QAHandler) Stats(c *gin.Context) {
	httputils.WriteResponse(c, nil, metrics.GetPipelineMetrics().Stats())
}

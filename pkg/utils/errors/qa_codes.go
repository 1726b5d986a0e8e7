package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Service code for the paperqa pipeline.
const ServicePaperQA = 20

// Common errors shared by all endpoints.
var (
	// OK represents a successful operation.
	OK = &Errno{Code: 0, HTTP: http.StatusOK, GRPCCode: codes.OK, MessageEN: "OK", MessageZH: "成功"}

	// ErrInvalidParam represents a request validation failure.
	ErrInvalidParam = &Errno{
		Code:      MakeCode(0, 1, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	}

	// ErrNotFound represents a missing resource.
	ErrNotFound = &Errno{
		Code:      MakeCode(0, 4, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	}

	// ErrInternal represents an unexpected internal failure.
	ErrInternal = &Errno{
		Code:      MakeCode(0, 7, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	}
)

// Pipeline errors. The pipeline recovers from most of these locally via stage
// fallbacks; they surface to clients only through user-language stream messages.
var (
	// ErrConfiguration indicates invalid chunking/timeout configuration.
	// Rejected at startup, never mid-request.
	ErrConfiguration = &Errno{
		Code:      MakeCode(ServicePaperQA, 12, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Invalid pipeline configuration",
		MessageZH: "流水线配置无效",
	}

	// ErrExternalService indicates an embedding or LLM call failed.
	ErrExternalService = &Errno{
		Code:      MakeCode(ServicePaperQA, 10, 1),
		HTTP:      http.StatusBadGateway,
		GRPCCode:  codes.Unavailable,
		MessageEN: "External service call failed",
		MessageZH: "外部服务调用失败",
	}

	// ErrStageTimeout indicates a single pipeline stage exceeded its budget.
	ErrStageTimeout = &Errno{
		Code:      MakeCode(ServicePaperQA, 11, 1),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Pipeline stage timed out",
		MessageZH: "流水线阶段超时",
	}

	// ErrDeadlineExceeded indicates the overall request budget was exhausted.
	ErrDeadlineExceeded = &Errno{
		Code:      MakeCode(ServicePaperQA, 11, 2),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Request deadline exceeded",
		MessageZH: "请求处理超时",
	}

	// ErrGeneration indicates the final answer generation failed with no
	// further fallback available.
	ErrGeneration = &Errno{
		Code:      MakeCode(ServicePaperQA, 7, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Answer generation failed",
		MessageZH: "答案生成失败",
	}

	// ErrEmptyDocument indicates the supplied document had no usable text.
	ErrEmptyDocument = &Errno{
		Code:      MakeCode(ServicePaperQA, 1, 2),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Document contains no extractable text",
		MessageZH: "文档不包含可提取的文本",
	}
)

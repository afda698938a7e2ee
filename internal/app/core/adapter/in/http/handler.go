package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// Handler HTTP 的 Driving Adapter
type Handler struct {
	core *usecase.CoreUseCase
}

func NewHandler(core *usecase.CoreUseCase) *Handler {
	return &Handler{core: core}
}

// NewRouter 建立 gin.Engine 並註冊所有路由
//
// 參數:
//
//	core: 業務邏輯層
//	logger: 請求 log 的基底
//
// 回傳:
//
//	*gin.Engine: 可直接當作 http.Handler 使用
func NewRouter(core *usecase.CoreUseCase, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), StructuredLogging(logger))

	// 存活檢查，不碰帳本
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "Healthy")
	})

	h := NewHandler(core)
	clientes := r.Group("/clientes")
	{
		clientes.POST("/:id/transacoes", h.postTransaction)
		clientes.GET("/:id/extrato", h.getExtract)
	}
	return r
}

func (h *Handler) postTransaction(c *gin.Context) {
	logger := loggerFrom(c)

	// 1. 帳戶 ID 不是整數就不可能是已設定的帳戶
	accountID, ok := parseAccountID(c)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	// 2. 解析 body，JSON 壞掉或型別不符都是 422
	var body transactionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		logger.Debug("invalid transaction body", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}

	view, err := h.core.SubmitTransaction(c.Request.Context(), accountID, body.toDomain())
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(view))
}

func (h *Handler) getExtract(c *gin.Context) {
	logger := loggerFrom(c)

	accountID, ok := parseAccountID(c)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	extract, err := h.core.GetExtract(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, toExtratoResponse(extract))
}

// writeError 業務錯誤轉成 HTTP 狀態碼
func (h *Handler) writeError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrMalformedRequest),
		errors.Is(err, domain.ErrInsufficientLimit):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logger.Error("ledger request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseAccountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/service/auction/application"
	"auctionhub/internal/service/auction/domain"
)

const serviceName = "auction-service"

// AuctionHandler 封装了拍卖服务的 HTTP 处理器
type AuctionHandler struct {
	service *application.BidApplicationService
}

func NewAuctionHandler(service *application.BidApplicationService) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *AuctionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/auction/bid", h.placeBidHandler)
	mux.HandleFunc("/auction/bids", h.historyHandler)
	mux.HandleFunc("/auction/status", h.statusHandler)
}

// placeBidRequest 是 POST /auction/bid 的请求体，金额使用字符串避免浮点误差
type placeBidRequest struct {
	ProductID     string           `json:"productId"`
	UserID        string           `json:"userId"`
	SessionID     string           `json:"sessionId"`
	IsAuto        bool             `json:"isAuto"`
	Amount        decimal.Decimal  `json:"amount"`
	MaxAutoAmount *decimal.Decimal `json:"maxAutoAmount,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *AuctionHandler) placeBidHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed"})
		return
	}
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.PlaceBid")
	defer span.End()

	var body placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: err.Error()})
		return
	}
	// 匿名会话也可以通过 cookie 传入
	if body.UserID == "" && body.SessionID == "" {
		if c, err := r.Cookie("auction_session"); err == nil {
			body.SessionID = c.Value
		}
	}
	span.SetAttributes(attribute.String("auction.product_id", body.ProductID))

	outcome, err := h.service.PlaceBid(ctx, &application.PlaceBidRequest{
		ProductID:     body.ProductID,
		UserID:        body.UserID,
		SessionID:     body.SessionID,
		IsAuto:        body.IsAuto,
		Amount:        body.Amount,
		MaxAutoAmount: body.MaxAutoAmount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *AuctionHandler) historyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.BidHistory")
	defer span.End()

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 20 // 默认条数
	}
	includeOutbid := domain.ParseFlag(q.Get("include_outbid"))

	entries, err := h.service.History(ctx, q.Get("productId"), limit, includeOutbid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AuctionHandler) statusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.AuctionStatus")
	defer span.End()

	view, err := h.service.Status(ctx, r.URL.Query().Get("productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// writeError 把拒绝原因和存储失败翻译成 HTTP 状态码
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *domain.RejectionError
	switch {
	case errors.As(err, &rej):
		status := http.StatusUnprocessableEntity
		switch rej.Reason {
		case domain.ReasonInvalidProduct, domain.ReasonMissingBidderIdentity:
			status = http.StatusBadRequest
		case domain.ReasonProductNotFound:
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: string(rej.Reason), Detail: rej.Detail})
	case errors.Is(err, domain.ErrPersistence):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: domain.ErrPersistence.Error(), Detail: "please retry"})
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Base().Warn().Err(err).Msg("failed to write response")
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/theplant/luhn"
	"go.uber.org/zap"

	"github.com/iurnickita/dailyincome/internal/auth"
	"github.com/iurnickita/dailyincome/internal/gzip"
	"github.com/iurnickita/dailyincome/internal/handler/config"
	"github.com/iurnickita/dailyincome/internal/logger"
	"github.com/iurnickita/dailyincome/internal/settlement"
	"github.com/iurnickita/dailyincome/internal/store"
)

func Serve(cfg config.Config, auth auth.Auth, settlement settlement.Settlement, store store.Store, zaplog *zap.Logger) error {
	h := newHandler(auth, settlement, store, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	return srv.ListenAndServe()
}

type handler struct {
	auth       auth.Auth
	settlement settlement.Settlement
	store      store.Store
	zaplog     *zap.Logger
}

func newHandler(auth auth.Auth, settlement settlement.Settlement, store store.Store, zaplog *zap.Logger) *handler {
	return &handler{
		auth:       auth,
		settlement: settlement,
		store:      store,
		zaplog:     zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/user/register", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Register, h.zaplog)))
	mux.HandleFunc("POST /api/user/login", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Login, h.zaplog)))
	mux.HandleFunc("GET /api/user/orders", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetOrders), h.zaplog)))
	mux.HandleFunc("GET /api/user/balance", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetBalance), h.zaplog)))
	mux.HandleFunc("POST /api/user/sync", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PostSync), h.zaplog)))
	mux.HandleFunc("POST /api/orders/{number}/settle", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PostSettle), h.zaplog)))
	mux.HandleFunc("POST /api/internal/sync", logger.RequestLogMdlw(h.PostSyncAll, h.zaplog))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type GetOrdersJSONResponse struct {
	Number        string    `json:"number"`
	Status        string    `json:"status"`
	DailyIncome   float32   `json:"daily_income"`
	RemainingDays int       `json:"remaining_days"`
	PurchaseDate  time.Time `json:"purchase_date"`
	LastSettled   time.Time `json:"last_settled,omitempty"`
}

// GetOrders возвращает заказы пользователя.
// Активность пользователя - повод для синхронизации, поэтому
// перед выборкой выплачиваем накопившийся доход
func (h *handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	if _, err := h.settlement.SyncAccount(r.Context(), userCode, time.Now().UTC()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	orders, err := h.store.OrderListActive(r.Context(), userCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(orders) == 0 {
		http.Error(w, "", http.StatusNoContent)
		return
	}

	var ordersJSON []GetOrdersJSONResponse
	for _, order := range orders {
		ordersJSON = append(ordersJSON,
			GetOrdersJSONResponse{Number: order.Number,
				Status:        order.Data.Status,
				DailyIncome:   h.kopeksOutput(order.Data.DailyIncome),
				RemainingDays: order.Data.RemainingDays,
				PurchaseDate:  order.Data.PurchaseDate,
				LastSettled:   order.Data.LastSettled})
	}
	responseJSON, err := json.Marshal(ordersJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseJSON)
}

type GetBalanceJSONResponse struct {
	Current   float32 `json:"current"`
	Withdrawn float32 `json:"withdrawn"`
}

func (h *handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	balance, err := h.store.BalanceGetActual(r.Context(), userCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	balanceJSON := GetBalanceJSONResponse{Current: h.kopeksOutput(balance.Data.Balance),
		Withdrawn: h.kopeksOutput(balance.Data.Withdrawn)}
	responseJSON, err := json.Marshal(balanceJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseJSON)
}

type SyncJSONResponse struct {
	Processed int `json:"processed"`
	Settled   int `json:"settled"`
	Failed    int `json:"failed"`
}

func (h *handler) PostSync(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	report, err := h.settlement.SyncAccount(r.Context(), userCode, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeReport(w, report)
}

// PostSyncAll - точка запуска глобальной синхронизации
// внешним планировщиком
func (h *handler) PostSyncAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.settlement.SyncAll(r.Context(), time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeReport(w, report)
}

func (h *handler) writeReport(w http.ResponseWriter, report settlement.Report) {
	responseJSON, err := json.Marshal(SyncJSONResponse{
		Processed: report.Processed,
		Settled:   report.Settled,
		Failed:    report.Failed,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseJSON)
}

func (h *handler) PostSettle(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	// Проверка по алгоритму Луна
	numberInt, err := strconv.Atoi(number)
	if err != nil || !luhn.Valid(numberInt) {
		http.Error(w, "order number is invalid", http.StatusUnprocessableEntity)
		return
	}

	// Чужой заказ не выплачиваем
	userCode := r.Header.Get(auth.HeaderUserCodeKey)
	order, err := h.store.OrderGet(r.Context(), number)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if order.Data.Customer != userCode {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	err = h.settlement.Settle(r.Context(), number, time.Now().UTC())
	if err != nil {
		switch err {
		case settlement.ErrOrderNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		case settlement.ErrEntitlementInvalid:
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) kopeksOutput(kopeks int) float32 {
	return float32(kopeks) / 100
}

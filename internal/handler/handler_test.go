package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/dailyincome/internal/auth"
	"github.com/iurnickita/dailyincome/internal/model"
	"github.com/iurnickita/dailyincome/internal/settlement"
	"github.com/iurnickita/dailyincome/internal/store"
)

// Авторизация-заглушка: все запросы от пользователя 100001
type fakeAuth struct{}

func (fakeAuth) Register(w http.ResponseWriter, r *http.Request) {}
func (fakeAuth) Login(w http.ResponseWriter, r *http.Request)    {}
func (fakeAuth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set(auth.HeaderUserCodeKey, "100001")
		h.ServeHTTP(w, r)
	}
}

type fakeSettlement struct {
	settled []string
}

func (f *fakeSettlement) Settle(_ context.Context, number string, _ time.Time) error {
	f.settled = append(f.settled, number)
	return nil
}

func (f *fakeSettlement) SyncAccount(context.Context, string, time.Time) (settlement.Report, error) {
	return settlement.Report{}, nil
}

func (f *fakeSettlement) SyncAll(context.Context, time.Time) (settlement.Report, error) {
	return settlement.Report{Processed: 2, Settled: 1, Failed: 1}, nil
}

type fakeStore struct {
	store.Store
	orders   map[string]model.InvestOrder
	balances map[string]model.Balance
}

func (f *fakeStore) OrderGet(_ context.Context, number string) (model.InvestOrder, error) {
	order, ok := f.orders[number]
	if !ok {
		return model.InvestOrder{}, store.ErrNoRows
	}
	return order, nil
}

func (f *fakeStore) BalanceGetActual(_ context.Context, customer string) (model.Balance, error) {
	return f.balances[customer], nil
}

func newTestRouter(settlement settlement.Settlement, store store.Store) *http.ServeMux {
	h := newHandler(fakeAuth{}, settlement, store, zap.NewNop())
	return h.newRouter()
}

func TestPostSettle(t *testing.T) {
	fakeSettle := &fakeSettlement{}
	router := newTestRouter(fakeSettle, &fakeStore{
		orders: map[string]model.InvestOrder{
			"79927398713": {Number: "79927398713",
				Data: model.InvestOrderData{Customer: "100001", Status: model.InvestOrderStatusActive}},
			"49927398716": {Number: "49927398716",
				Data: model.InvestOrderData{Customer: "100002", Status: model.InvestOrderStatusActive}},
		},
	})

	// номер не проходит проверку Луна
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/orders/123/settle", nil))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Empty(t, fakeSettle.settled)

	// чужой заказ
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/orders/49927398716/settle", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, fakeSettle.settled)

	// свой заказ выплачивается
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/orders/79927398713/settle", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"79927398713"}, fakeSettle.settled)
}

func TestGetBalance(t *testing.T) {
	router := newTestRouter(&fakeSettlement{}, &fakeStore{
		balances: map[string]model.Balance{
			"100001": {Data: model.BalanceData{Balance: 12345, Withdrawn: 500}},
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/user/balance", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"current": 123.45, "withdrawn": 5}`, w.Body.String())
}

func TestPostSyncAll(t *testing.T) {
	router := newTestRouter(&fakeSettlement{}, &fakeStore{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/internal/sync", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"processed": 2, "settled": 1, "failed": 1}`, w.Body.String())
}

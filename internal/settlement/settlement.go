package settlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/dailyincome/internal/calendar"
	"github.com/iurnickita/dailyincome/internal/metrics"
	"github.com/iurnickita/dailyincome/internal/model"
	"github.com/iurnickita/dailyincome/internal/settlement/config"
	"github.com/iurnickita/dailyincome/internal/settlement/notifier"
	"github.com/iurnickita/dailyincome/internal/store"
)

type Settlement interface {
	Settle(ctx context.Context, number string, now time.Time) error
	SyncAccount(ctx context.Context, customer string, now time.Time) (Report, error)
	SyncAll(ctx context.Context, now time.Time) (Report, error)
}

// Report - итог пакетной синхронизации
type Report struct {
	Processed int
	Settled   int
	Failed    int
}

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEntitlementInvalid = errors.New("entitlement data is invalid")
)

type settlement struct {
	cfg       config.Config
	store     store.Store
	publisher notifier.Publisher
	zaplog    *zap.Logger
}

func NewSettlement(cfg config.Config, store store.Store, publisher notifier.Publisher, zaplog *zap.Logger) Settlement {
	return &settlement{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		zaplog:    zaplog,
	}
}

// Итог одного вызова Settle. Заполняется внутри транзакции,
// используется после фиксации
type outcome struct {
	result    string
	customer  string
	credited  int
	days      int
	settledAt time.Time
}

// Settle выплачивает по заказу доход за прошедшие доходные дни.
// Идемпотентна: повторный вызов без новой границы дня ничего не меняет.
// Сколько бы дней ни накопилось, за воскресенья дохода нет
func (s *settlement) Settle(ctx context.Context, number string, now time.Time) error {
	// Сегодня (UTC) воскресенье - выплат нет
	if calendar.IsNonEarningDay(now) {
		metrics.SettlementsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		return nil
	}

	var out outcome
	err := s.store.SettleTx(ctx, func(tx store.Tx) error {
		// Повторное чтение внутри транзакции: при конфликте двух
		// одновременных выплат пересчет идет от нового водяного знака
		out = outcome{}
		order, err := tx.OrderGet(ctx, number)
		if err != nil {
			if errors.Is(err, store.ErrNoRows) {
				out.result = metrics.ResultSkipped
				return nil
			}
			return err
		}
		if order.Data.Status != model.InvestOrderStatusActive {
			out.result = metrics.ResultNoop
			return nil
		}

		watermark := order.Data.LastSettled
		if watermark.IsZero() {
			watermark = order.Data.PurchaseDate
		}
		from := calendar.DayIndex(watermark)
		to := calendar.DayIndex(now)
		eligible := calendar.CountEligibleDayBoundaries(from, to)

		if eligible == 0 {
			if order.Data.RemainingDays <= 0 {
				order.Data.Status = model.InvestOrderStatusCompleted
				out.result = metrics.ResultNoop
				return tx.OrderUpdate(ctx, order)
			}
			if to > from {
				// Весь разрыв пришелся на воскресенья: двигаем водяной
				// знак, чтобы не пересматривать его на каждом вызове
				order.Data.LastSettled = calendar.DayStart(to)
				out.result = metrics.ResultNoop
				return tx.OrderUpdate(ctx, order)
			}
			out.result = metrics.ResultNoop
			return nil
		}

		account, err := tx.AccountGet(ctx, order.Data.Customer)
		if err != nil {
			if errors.Is(err, store.ErrNoRows) {
				out.result = metrics.ResultSkipped
				return nil
			}
			return err
		}

		if order.Data.DailyIncome < 0 {
			// Некорректные данные начисления: заказ больше не выплачивается
			// до ручного исправления
			order.Data.Status = model.InvestOrderStatusError
			out.result = metrics.ResultInvalid
			return tx.OrderUpdate(ctx, order)
		}

		payable := order.Data.RemainingDays
		if int64(payable) > eligible {
			payable = int(eligible)
		}
		if payable <= 0 {
			if order.Data.RemainingDays <= 0 {
				order.Data.Status = model.InvestOrderStatusCompleted
				out.result = metrics.ResultNoop
				return tx.OrderUpdate(ctx, order)
			}
			out.result = metrics.ResultNoop
			return nil
		}

		credit := order.Data.DailyIncome * payable
		if credit > 0 {
			if err := tx.BalanceIncrease(ctx, account.Code, order.Number, credit); err != nil {
				return err
			}
		}
		order.Data.RemainingDays -= payable
		order.Data.LastSettled = calendar.DayStart(to)
		if order.Data.RemainingDays == 0 {
			order.Data.Status = model.InvestOrderStatusCompleted
		}
		out = outcome{
			result:    metrics.ResultCredited,
			customer:  account.Code,
			credited:  credit,
			days:      payable,
			settledAt: order.Data.LastSettled,
		}
		return tx.OrderUpdate(ctx, order)
	})
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return err
	}

	metrics.SettlementsTotal.WithLabelValues(out.result).Inc()
	switch out.result {
	case metrics.ResultCredited:
		metrics.CreditedKopeksTotal.Add(float64(out.credited))
		s.zaplog.Info("order settled",
			zap.String("order", number),
			zap.String("customer", out.customer),
			zap.Int("credited", out.credited),
			zap.Int("days", out.days),
		)
		// Уведомление после фиксации. Сбой публикации выплату не отменяет
		if err := s.publisher.SettlementPublished(ctx, notifier.Event{
			Customer:  out.customer,
			Order:     number,
			Credited:  out.credited,
			Days:      out.days,
			SettledAt: out.settledAt,
		}); err != nil {
			s.zaplog.Warn("settlement event publish failed",
				zap.String("order", number),
				zap.Error(err),
			)
		}
	case metrics.ResultInvalid:
		s.zaplog.Warn("order entitlement is invalid",
			zap.String("order", number),
		)
		return ErrEntitlementInvalid
	case metrics.ResultSkipped:
		return ErrOrderNotFound
	}
	return nil
}

// SyncAccount выплачивает доход по всем активным заказам пользователя
func (s *settlement) SyncAccount(ctx context.Context, customer string, now time.Time) (Report, error) {
	orders, err := s.store.OrderListActive(ctx, customer)
	if err != nil {
		return Report{}, err
	}
	metrics.SyncRunsTotal.WithLabelValues(metrics.ScopeAccount).Inc()

	return s.syncOrders(ctx, orders, now), nil
}

// SyncAll выплачивает доход по всем активным заказам всех пользователей.
// Вызывается планировщиком, безопасна при повторах
func (s *settlement) SyncAll(ctx context.Context, now time.Time) (Report, error) {
	orders, err := s.store.OrderListActive(ctx, "")
	if err != nil {
		return Report{}, err
	}
	metrics.SyncRunsTotal.WithLabelValues(metrics.ScopeGlobal).Inc()

	report := s.syncOrders(ctx, orders, now)
	s.zaplog.Info("global sync finished",
		zap.Int("processed", report.Processed),
		zap.Int("settled", report.Settled),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// syncOrders обрабатывает заказы независимо друг от друга.
// Сбой по одному заказу не прерывает пакет: остальные заказы
// выплачиваются, неудачные будут повторены следующим вызовом
func (s *settlement) syncOrders(ctx context.Context, orders []model.InvestOrder, now time.Time) Report {
	var report Report
	for _, order := range orders {
		report.Processed++
		err := s.Settle(ctx, order.Number, now)
		if err != nil {
			switch {
			case errors.Is(err, ErrOrderNotFound):
				// заказ исчез между выборкой и выплатой - пропускаем
			case errors.Is(err, ErrEntitlementInvalid):
				report.Failed++
			default:
				report.Failed++
				s.zaplog.Error("order settle failed",
					zap.String("order", order.Number),
					zap.Error(err),
				)
			}
			continue
		}
		report.Settled++
	}
	return report
}

package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDayIndex(t *testing.T) {
	// один календарный день UTC = один номер
	require.Equal(t, DayIndex(date("2025-12-29T00:00:00Z")), DayIndex(date("2025-12-29T23:59:59Z")))
	require.NotEqual(t, DayIndex(date("2025-12-29T23:59:59Z")), DayIndex(date("2025-12-30T00:00:00Z")))

	// DayStart возвращает полночь того же дня
	index := DayIndex(date("2025-12-29T18:00:00Z"))
	require.Equal(t, date("2025-12-29T00:00:00Z"), DayStart(index))
	require.Equal(t, index, DayIndex(DayStart(index)))
}

func TestIsNonEarningDay(t *testing.T) {
	// 2025-12-28 - воскресенье
	require.True(t, IsNonEarningDay(date("2025-12-28T12:00:00Z")))
	require.False(t, IsNonEarningDay(date("2025-12-29T12:00:00Z")))

	// граница суток: 23:59 воскресенья еще воскресенье
	require.True(t, IsNonEarningDay(date("2025-12-28T23:59:59Z")))
	require.False(t, IsNonEarningDay(date("2025-12-29T00:00:00Z")))
}

func TestCountEligibleDayBoundaries(t *testing.T) {
	monday := DayIndex(date("2025-12-29T18:00:00Z"))

	// пустой интервал
	require.Equal(t, int64(0), CountEligibleDayBoundaries(monday, monday))

	// понедельник -> вторник: одна доходная граница
	require.Equal(t, int64(1), CountEligibleDayBoundaries(monday, monday+1))

	// понедельник -> среда: две
	require.Equal(t, int64(2), CountEligibleDayBoundaries(monday, monday+2))

	// полная неделя: 7 переходов, один закрывает воскресенье
	require.Equal(t, int64(6), CountEligibleDayBoundaries(monday, monday+7))

	// суббота -> понедельник: переход в воскресенье доходный
	// (закончилась суббота), переход в понедельник - нет
	saturday := DayIndex(date("2026-01-03T10:00:00Z"))
	require.Equal(t, int64(1), CountEligibleDayBoundaries(saturday, saturday+2))

	// воскресенье -> понедельник: доходных границ нет
	sunday := DayIndex(date("2026-01-04T10:00:00Z"))
	require.Equal(t, int64(0), CountEligibleDayBoundaries(sunday, sunday+1))

	// четыре полных недели
	require.Equal(t, int64(24), CountEligibleDayBoundaries(monday, monday+28))
}

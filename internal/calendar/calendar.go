// Пакет calendar - чистая арифметика календарных дней UTC.
// День считается номером от начала эпохи, граница дня - полночь UTC.
package calendar

import "time"

const dayMillis = 24 * 60 * 60 * 1000

// DayIndex возвращает номер календарного дня UTC.
// Два момента дают одинаковый номер тогда и только тогда,
// когда они попадают в один календарный день UTC
func DayIndex(t time.Time) int64 {
	return t.UnixMilli() / dayMillis
}

// DayStart возвращает полночь UTC дня с данным номером
func DayStart(index int64) time.Time {
	return time.UnixMilli(index * dayMillis).UTC()
}

// IsNonEarningDay: доход не начисляется по воскресеньям (UTC)
func IsNonEarningDay(t time.Time) bool {
	return t.UTC().Weekday() == time.Sunday
}

// 1970-01-01 (день 0) - четверг, воскресенье = остаток 3
func isSundayIndex(index int64) bool {
	return ((index%7)+7)%7 == 3
}

// CountEligibleDayBoundaries считает доходные переходы через границу дня
// в полуинтервале (from, to]. Переход не засчитывается, если закончившийся
// день (номер i-1) был воскресеньем
func CountEligibleDayBoundaries(from, to int64) int64 {
	var count int64
	for i := from + 1; i <= to; i++ {
		if isSundayIndex(i - 1) {
			continue
		}
		count++
	}
	return count
}

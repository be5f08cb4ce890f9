package model

import "time"

// Учетные записи

type Account struct {
	Code string
	Data AccountData
}
type AccountData struct {
	Login        string
	Contact      string
	ReferralCode string
	Inviters     ReferralChain
}

// Реферальная цепочка: до 4 уровней пригласивших, ближайший первым.
// Заполняется один раз при регистрации, далее не меняется
type ReferralChain struct {
	InviterA string
	InviterB string
	InviterC string
	InviterD string
}

// Инвестиционные заказы

type InvestOrder struct {
	Number string
	Data   InvestOrderData
}
type InvestOrderData struct {
	Customer      string
	DailyIncome   int // копейки за один доходный день
	RemainingDays int
	PurchaseDate  time.Time
	LastSettled   time.Time // нулевое значение = выплат еще не было
	Status        string
}

const (
	InvestOrderStatusActive    = "ACTIVE"
	InvestOrderStatusCompleted = "COMPLETED"
	InvestOrderStatusError     = "ERROR"
)

// Баланс и история

type Balance struct {
	Key  BalanceKey
	Data BalanceData
}
type BalanceKey struct {
	Customer  string
	Operation string
}
type BalanceData struct {
	Timestamp  time.Time
	Difference int
	Balance    int
	Withdrawn  int
	Order      string
}

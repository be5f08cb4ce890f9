package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/dailyincome/internal/model"
	"github.com/iurnickita/dailyincome/internal/store/config"
)

type Store interface {
	AccountRegister(ctx context.Context, account model.Account, password string) (string, error)
	AccountLogin(ctx context.Context, login string, password string) (string, error)
	AccountGet(ctx context.Context, code string) (model.Account, error)
	AccountGetByReferralCode(ctx context.Context, referralCode string) (model.Account, error)
	BalanceGetActual(ctx context.Context, customer string) (model.Balance, error)
	BalanceGetHistory(ctx context.Context, customer string) ([]model.Balance, error)
	OrderCreate(ctx context.Context, order model.InvestOrder) error
	OrderGet(ctx context.Context, number string) (model.InvestOrder, error)
	OrderListActive(ctx context.Context, customer string) ([]model.InvestOrder, error)
	SettleTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx - операции внутри сериализуемой транзакции выплаты.
// Чтение и запись заказа и баланса фиксируются все вместе или никак
type Tx interface {
	OrderGet(ctx context.Context, number string) (model.InvestOrder, error)
	OrderUpdate(ctx context.Context, order model.InvestOrder) error
	AccountGet(ctx context.Context, code string) (model.Account, error)
	BalanceIncrease(ctx context.Context, customer string, order string, kopeks int) error
}

var (
	ErrNoRows            = errors.New("no rows")
	ErrAlreadyExists     = errors.New("already exists")
	ErrReferralCodeTaken = errors.New("referral code taken")
	ErrCodeCollision     = errors.New("referral code collision")
	ErrAmountIncorrect   = errors.New("amount value is incorrect")
	ErrTxConflict        = errors.New("transaction conflict")
)

const (
	pgCodeUniqueViolation      = "23505"
	pgCodeSerializationFailure = "40001"

	settleTxRetries = 3
)

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Таблица учетных записей.
	// Реферальный код уникален: совпадение хвостов контактных
	// идентификаторов - явная ошибка регистрации, не "кто первый"
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS account (" +
			" login VARCHAR (40) PRIMARY KEY," +
			" code SERIAL UNIQUE," +
			" password VARCHAR (40) NOT NULL," +
			" contact VARCHAR (40) NOT NULL," +
			" referral_code VARCHAR (8) UNIQUE NOT NULL," +
			" inviter_a VARCHAR (10)," +
			" inviter_b VARCHAR (10)," +
			" inviter_c VARCHAR (10)," +
			" inviter_d VARCHAR (10)" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица баланса пользователя.
	// Представляет собой журнал: на каждую операцию новая запись
	// с накопленным итогом, так легче отслеживать историю
	// и выявлять ошибки при операциях с балансом.
	// Записи нельзя редактировать/удалять
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS balance (" +
			" operation VARCHAR (36) PRIMARY KEY," +
			" customer VARCHAR (10) NOT NULL," +
			" timestamp TIMESTAMP NOT NULL," +
			" difference BIGINT NOT NULL," +
			" balance BIGINT," +
			" withdrawn BIGINT," +
			" invest_order VARCHAR (20) NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица инвестиционных заказов.
	// last_settled - водяной знак выплат, всегда полночь UTC
	// после первой выплаты; NULL = выплат еще не было
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS invest_order (" +
			" number VARCHAR (20) PRIMARY KEY," +
			" customer VARCHAR (10) NOT NULL," +
			" daily_income BIGINT NOT NULL," +
			" remaining_days INTEGER NOT NULL," +
			" purchase_date TIMESTAMP NOT NULL," +
			" last_settled TIMESTAMP," +
			" status VARCHAR (10) NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

func (store *store) AccountRegister(ctx context.Context, account model.Account, password string) (string, error) {
	// Запись новой учетной записи
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO account (login, password, contact, referral_code, inviter_a, inviter_b, inviter_c, inviter_d)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8)"+
			" RETURNING code",
		account.Data.Login,
		password,
		account.Data.Contact,
		account.Data.ReferralCode,
		nullString(account.Data.Inviters.InviterA),
		nullString(account.Data.Inviters.InviterB),
		nullString(account.Data.Inviters.InviterC),
		nullString(account.Data.Inviters.InviterD))

	var code int
	err := row.Scan(&code)
	if err != nil {
		// Проверка: уже существует
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgCodeUniqueViolation {
				if pgErr.ConstraintName == "account_referral_code_key" {
					return "", ErrReferralCodeTaken
				}
				return "", ErrAlreadyExists
			}
		}

		return "", err
	}

	return strconv.Itoa(code), nil
}

func (store *store) AccountLogin(ctx context.Context, login string, password string) (string, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT code FROM account"+
			" WHERE login = $1"+
			"   AND password = $2",
		login,
		password)
	var code int
	err := row.Scan(&code)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNoRows
		}
		return "", err
	}

	return strconv.Itoa(code), nil
}

const accountFields = " code, login, contact, referral_code, inviter_a, inviter_b, inviter_c, inviter_d"

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var account model.Account
	var code int
	var inviterA, inviterB, inviterC, inviterD sql.NullString
	err := row.Scan(&code,
		&account.Data.Login,
		&account.Data.Contact,
		&account.Data.ReferralCode,
		&inviterA,
		&inviterB,
		&inviterC,
		&inviterD)
	if err != nil {
		return model.Account{}, err
	}
	account.Code = strconv.Itoa(code)
	account.Data.Inviters = model.ReferralChain{
		InviterA: inviterA.String,
		InviterB: inviterB.String,
		InviterC: inviterC.String,
		InviterD: inviterD.String,
	}
	return account, nil
}

func (store *store) AccountGet(ctx context.Context, code string) (model.Account, error) {
	codeInt, err := strconv.Atoi(code)
	if err != nil {
		return model.Account{}, ErrNoRows
	}
	row := store.database.QueryRowContext(ctx,
		"SELECT"+accountFields+
			" FROM account"+
			" WHERE code = $1",
		codeInt)
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Account{}, ErrNoRows
		}
		return model.Account{}, err
	}
	return account, nil
}

func (store *store) AccountGetByReferralCode(ctx context.Context, referralCode string) (model.Account, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT"+accountFields+
			" FROM account"+
			" WHERE referral_code = $1",
		referralCode)
	if err != nil {
		return model.Account{}, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return model.Account{}, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return model.Account{}, err
	}

	switch len(accounts) {
	case 0:
		return model.Account{}, ErrNoRows
	case 1:
		return accounts[0], nil
	default:
		// Два владельца одного кода: не выбираем произвольного
		return model.Account{}, ErrCodeCollision
	}
}

func (store *store) BalanceGetActual(ctx context.Context, customer string) (model.Balance, error) {
	// Получение актуального баланса - последняя запись журнала
	var balanceRow model.Balance
	row := store.database.QueryRowContext(ctx,
		"SELECT operation, customer, timestamp, difference, balance, withdrawn, invest_order"+
			" FROM balance"+
			" WHERE customer = $1"+
			" ORDER BY timestamp DESC"+
			" LIMIT 1",
		customer)
	err := row.Scan(&balanceRow.Key.Operation,
		&balanceRow.Key.Customer,
		&balanceRow.Data.Timestamp,
		&balanceRow.Data.Difference,
		&balanceRow.Data.Balance,
		&balanceRow.Data.Withdrawn,
		&balanceRow.Data.Order)
	if err != nil && err != sql.ErrNoRows { // если нет строки - ок, нулевой баланс
		return model.Balance{}, err
	}
	return balanceRow, nil
}

func (store *store) BalanceGetHistory(ctx context.Context, customer string) ([]model.Balance, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT operation, customer, timestamp, difference, balance, withdrawn, invest_order"+
			" FROM balance"+
			" WHERE customer = $1"+
			" ORDER BY timestamp",
		customer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []model.Balance
	for rows.Next() {
		var balanceRow model.Balance
		err := rows.Scan(&balanceRow.Key.Operation,
			&balanceRow.Key.Customer,
			&balanceRow.Data.Timestamp,
			&balanceRow.Data.Difference,
			&balanceRow.Data.Balance,
			&balanceRow.Data.Withdrawn,
			&balanceRow.Data.Order)
		if err != nil {
			return nil, err
		}
		history = append(history, balanceRow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}

func (store *store) OrderCreate(ctx context.Context, order model.InvestOrder) error {
	// Запись нового заказа
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO invest_order (number, customer, daily_income, remaining_days, purchase_date, last_settled, status)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)",
		order.Number,
		order.Data.Customer,
		order.Data.DailyIncome,
		order.Data.RemainingDays,
		order.Data.PurchaseDate,
		nullTime(order.Data.LastSettled),
		order.Data.Status)
	if err != nil {
		// Проверка: уже существует
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgCodeUniqueViolation {
				return ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

const orderFields = " number, customer, daily_income, remaining_days, purchase_date, last_settled, status"

func scanOrder(row interface{ Scan(...any) error }) (model.InvestOrder, error) {
	var order model.InvestOrder
	var lastSettled sql.NullTime
	err := row.Scan(&order.Number,
		&order.Data.Customer,
		&order.Data.DailyIncome,
		&order.Data.RemainingDays,
		&order.Data.PurchaseDate,
		&lastSettled,
		&order.Data.Status)
	if err != nil {
		return model.InvestOrder{}, err
	}
	if lastSettled.Valid {
		order.Data.LastSettled = lastSettled.Time.UTC()
	}
	order.Data.PurchaseDate = order.Data.PurchaseDate.UTC()
	return order, nil
}

func (store *store) OrderGet(ctx context.Context, number string) (model.InvestOrder, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT"+orderFields+
			" FROM invest_order"+
			" WHERE number = $1",
		number)
	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.InvestOrder{}, ErrNoRows
		}
		return model.InvestOrder{}, err
	}
	return order, nil
}

func (store *store) OrderListActive(ctx context.Context, customer string) ([]model.InvestOrder, error) {
	// Получение активных заказов: по пользователю или все
	query := "SELECT" + orderFields +
		" FROM invest_order" +
		" WHERE status = $1"
	args := []any{model.InvestOrderStatusActive}
	if customer != "" {
		query += " AND customer = $2"
		args = append(args, customer)
	}

	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.InvestOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// SettleTx выполняет fn в сериализуемой транзакции.
// При конфликте сериализации (две одновременные выплаты одного заказа)
// проигравшая попытка повторяется и пересчитывает от нового водяного знака
func (store *store) SettleTx(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < settleTxRetries; attempt++ {
		dbtx, err := store.database.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}

		err = fn(&settleTx{tx: dbtx})
		if err != nil {
			dbtx.Rollback()
			if isSerializationFailure(err) {
				continue
			}
			return err
		}

		err = dbtx.Commit()
		if err == nil {
			return nil
		}
		if isSerializationFailure(err) {
			continue
		}
		return err
	}
	return ErrTxConflict
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeSerializationFailure
}

type settleTx struct {
	tx *sql.Tx
}

func (t *settleTx) OrderGet(ctx context.Context, number string) (model.InvestOrder, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT"+orderFields+
			" FROM invest_order"+
			" WHERE number = $1",
		number)
	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.InvestOrder{}, ErrNoRows
		}
		return model.InvestOrder{}, err
	}
	return order, nil
}

func (t *settleTx) OrderUpdate(ctx context.Context, order model.InvestOrder) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE invest_order"+
			" SET daily_income = $1,"+
			"     remaining_days = $2,"+
			"     last_settled = $3,"+
			"     status = $4"+
			" WHERE number = $5",
		order.Data.DailyIncome,
		order.Data.RemainingDays,
		nullTime(order.Data.LastSettled),
		order.Data.Status,
		order.Number)
	return err
}

func (t *settleTx) AccountGet(ctx context.Context, code string) (model.Account, error) {
	codeInt, err := strconv.Atoi(code)
	if err != nil {
		return model.Account{}, ErrNoRows
	}
	row := t.tx.QueryRowContext(ctx,
		"SELECT"+accountFields+
			" FROM account"+
			" WHERE code = $1",
		codeInt)
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Account{}, ErrNoRows
		}
		return model.Account{}, err
	}
	return account, nil
}

func (t *settleTx) BalanceIncrease(ctx context.Context, customer string, order string, kopeks int) error {
	if kopeks <= 0 {
		return ErrAmountIncorrect
	}

	// Получение актуального баланса внутри транзакции
	var balanceRow model.Balance
	row := t.tx.QueryRowContext(ctx,
		"SELECT operation, customer, timestamp, difference, balance, withdrawn, invest_order"+
			" FROM balance"+
			" WHERE customer = $1"+
			" ORDER BY timestamp DESC"+
			" LIMIT 1",
		customer)
	err := row.Scan(&balanceRow.Key.Operation,
		&balanceRow.Key.Customer,
		&balanceRow.Data.Timestamp,
		&balanceRow.Data.Difference,
		&balanceRow.Data.Balance,
		&balanceRow.Data.Withdrawn,
		&balanceRow.Data.Order)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	// Запись обновленного баланса
	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO balance (operation, customer, timestamp, difference, balance, withdrawn, invest_order)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)",
		uuid.NewString(),
		customer,
		time.Now().UTC(),
		kopeks,
		balanceRow.Data.Balance+kopeks,
		balanceRow.Data.Withdrawn,
		order)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

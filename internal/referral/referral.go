package referral

import (
	"context"
	"errors"

	"github.com/iurnickita/dailyincome/internal/model"
	"github.com/iurnickita/dailyincome/internal/store"
)

type Resolver interface {
	Resolve(ctx context.Context, invitationCode string) (model.ReferralChain, error)
}

var ErrCodeCollision = errors.New("referral code collision")

const codeLength = 8

type resolver struct {
	store store.Store
}

func NewResolver(store store.Store) Resolver {
	return &resolver{store: store}
}

// DeriveCode: реферальный код - последние 8 символов
// контактного идентификатора
func DeriveCode(contact string) string {
	runes := []rune(contact)
	if len(runes) <= codeLength {
		return contact
	}
	return string(runes[len(runes)-codeLength:])
}

// Resolve строит реферальную цепочку нового пользователя.
// Пригласивший становится уровнем A, его собственная цепочка
// сдвигается на уровень вниз, четвертый уровень отбрасывается.
// Отсутствие кода или владельца кода - не ошибка, цепочка пустая
func (r *resolver) Resolve(ctx context.Context, invitationCode string) (model.ReferralChain, error) {
	if invitationCode == "" {
		return model.ReferralChain{}, nil
	}

	inviter, err := r.store.AccountGetByReferralCode(ctx, invitationCode)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			return model.ReferralChain{}, nil
		case store.ErrCodeCollision:
			return model.ReferralChain{}, ErrCodeCollision
		default:
			return model.ReferralChain{}, err
		}
	}

	return model.ReferralChain{
		InviterA: inviter.Code,
		InviterB: inviter.Data.Inviters.InviterA,
		InviterC: inviter.Data.Inviters.InviterB,
		InviterD: inviter.Data.Inviters.InviterC,
	}, nil
}

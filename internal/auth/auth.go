package auth

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/iurnickita/dailyincome/internal/auth/config"
	"github.com/iurnickita/dailyincome/internal/auth/token"
	"github.com/iurnickita/dailyincome/internal/model"
	"github.com/iurnickita/dailyincome/internal/referral"
	"github.com/iurnickita/dailyincome/internal/store"
)

type Auth interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

const (
	HeaderUserCodeKey = "X-User-Code"
	cookieUserToken   = "dailyincomeUserToken"
)

type auth struct {
	cfg      config.Config
	store    store.Store
	resolver referral.Resolver
}

func NewAuth(cfg config.Config, store store.Store, resolver referral.Resolver) Auth {
	return &auth{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
	}
}

type registerJSONRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	Contact    string `json:"contact"`
	InviteCode string `json:"invite_code"`
}

// Register создает учетную запись. Реферальная цепочка
// разрешается здесь, один раз, и больше не меняется
func (a *auth) Register(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var request registerJSONRequest
	err = json.Unmarshal(buf.Bytes(), &request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if request.Login == "" || request.Password == "" || request.Contact == "" {
		http.Error(w, "insufficient data", http.StatusBadRequest)
		return
	}

	// Пригласительный код необязателен: нет кода или владельца - пустая цепочка
	chain, err := a.resolver.Resolve(r.Context(), request.InviteCode)
	if err != nil {
		switch err {
		case referral.ErrCodeCollision:
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	account := model.Account{
		Data: model.AccountData{
			Login:        request.Login,
			Contact:      request.Contact,
			ReferralCode: referral.DeriveCode(request.Contact),
			Inviters:     chain,
		},
	}
	userCode, err := a.store.AccountRegister(r.Context(), account, request.Password)
	if err != nil {
		switch err {
		case store.ErrAlreadyExists, store.ErrReferralCodeTaken:
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	err = a.setTokenCookie(w, userCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type loginJSONRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var request loginJSONRequest
	err = json.Unmarshal(buf.Bytes(), &request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userCode, err := a.store.AccountLogin(r.Context(), request.Login, request.Password)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			http.Error(w, err.Error(), http.StatusUnauthorized)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	err = a.setTokenCookie(w, userCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *auth) setTokenCookie(w http.ResponseWriter, userCode string) error {
	tokenString, err := token.BuildJWTString(userCode, a.cfg.TokenSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:  cookieUserToken,
		Value: tokenString,
		Path:  "/",
	})
	return nil
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// получение id пользователя
		userCode, err := a.getUserCode(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// записываем
		r.Header.Set(HeaderUserCodeKey, userCode)

		// передаём управление хендлеру
		h.ServeHTTP(w, r)
	}
}

func (a *auth) getUserCode(_ http.ResponseWriter, r *http.Request) (string, error) {

	// куки пользователя
	var userCode string
	tokenCookie, err := r.Cookie(cookieUserToken)
	if err != nil {
		return "", err
	}
	userCode, err = token.GetUserCode(tokenCookie.Value, a.cfg.TokenSecret)
	if err != nil {
		return "", err
	}
	return userCode, nil
}

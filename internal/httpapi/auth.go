package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/xid"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	now       func() time.Time
}

type UserStore interface {
	CreateShopAccount(ctx context.Context, shop domain.Shop, owner domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, userID string, password string) error
	GetShop(ctx context.Context, shopID string) (*domain.Shop, error)
}

type shopClaims struct {
	jwtlib.RegisteredClaims
	ShopID   string `json:"shopId"`
	ShopName string `json:"shopName"`
	Email    string `json:"email"`
}

// NewAuthManager expects a secret already validated at startup.
func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		now:       time.Now,
	}
}

func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	required := []struct {
		field string
		value string
	}{
		{"name", req.Name},
		{"email", email},
		{"shop_name", req.ShopName},
		{"shop_address", req.ShopAddress},
		{"gst_number", req.GSTNumber},
		{"bank_name", req.BankName},
		{"bank_account_number", req.BankAccountNumber},
		{"bank_ifsc", req.BankIFSC},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.LoginResponse{}, store.Invalid(r.field, "is required")
		}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.LoginResponse{}, store.Invalid("email", "is not a valid address")
	}
	if len(req.Password) < 6 {
		return domain.LoginResponse{}, store.Invalid("password", "must be at least 6 characters")
	}
	// bcrypt only hashes the first 72 bytes and refuses longer input.
	if len(req.Password) > 72 {
		return domain.LoginResponse{}, store.Invalid("password", "must be at most 72 bytes")
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.now().UTC()
	userID := xid.New("usr")
	shop := domain.Shop{
		ID:                xid.New("shop"),
		Name:              strings.TrimSpace(req.ShopName),
		Address:           strings.TrimSpace(req.ShopAddress),
		GSTNumber:         strings.ToUpper(strings.TrimSpace(req.GSTNumber)),
		BankName:          strings.TrimSpace(req.BankName),
		BankAccountNumber: strings.TrimSpace(req.BankAccountNumber),
		BankIFSC:          strings.ToUpper(strings.TrimSpace(req.BankIFSC)),
		OwnerID:           userID,
		CreatedAt:         now,
	}
	owner := domain.UserAccount{
		ID:        userID,
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Password:  passwordHash,
		ShopID:    shop.ID,
		Active:    true,
		CreatedAt: now,
	}

	if err := a.userStore.CreateShopAccount(ctx, shop, owner); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.LoginResponse{}, fmt.Errorf("%w: email already registered", store.ErrConflict)
		}
		return domain.LoginResponse{}, err
	}

	zap.S().Infow("shop registered", "shop", shop.ID, "owner", owner.ID)
	return a.issue(owner, shop)
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Password) == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	user, err := a.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !user.Active {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	if isPasswordHash(user.Password) {
		if !verifyPassword(user.Password, req.Password) {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
	} else {
		// Legacy rows hold the plain password; upgrade them on first success.
		if user.Password == "" || user.Password != req.Password {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		if hashed, err := hashPassword(req.Password); err == nil {
			if err := a.userStore.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
				zap.S().Warnf("[auth] failed to upgrade legacy password user=%s: %v", user.ID, err)
			}
		}
	}

	shop, err := a.userStore.GetShop(ctx, user.ShopID)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return a.issue(*user, *shop)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Principal, error) {
	claims := &shopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Principal{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.ShopID == "" {
		return domain.Principal{}, errors.New("invalid token subject")
	}
	return domain.Principal{
		UserID:   sub,
		Email:    claims.Email,
		ShopID:   claims.ShopID,
		ShopName: claims.ShopName,
	}, nil
}

func (a *AuthManager) issue(user domain.UserAccount, shop domain.Shop) (domain.LoginResponse, error) {
	principal := domain.Principal{
		UserID:   user.ID,
		Email:    user.Email,
		ShopID:   shop.ID,
		ShopName: shop.Name,
	}
	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(principal, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        principal,
	}, nil
}

func (a *AuthManager) sign(p domain.Principal, expiresAt time.Time) (string, error) {
	claims := shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "vyapaar",
		},
		ShopID:   p.ShopID,
		ShopName: p.ShopName,
		Email:    p.Email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

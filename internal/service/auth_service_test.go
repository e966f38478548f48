package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/internal/core/ports/mocks"
	"crypta-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc        *AuthServiceImpl
	users      *mocks.MockUserRepository
	wallets    *mocks.MockWalletService
	transactor *mocks.MockDBTransactor
	hashSvc    *mocks.MockHashService
	tokenSvc   *mocks.MockTokenService
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		users:      mocks.NewMockUserRepository(ctrl),
		wallets:    mocks.NewMockWalletService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		tokenSvc:   mocks.NewMockTokenService(ctrl),
	}
	d.svc = NewAuthService(d.users, d.wallets, d.transactor, d.hashSvc, d.tokenSvc, zerolog.Nop())
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	walletID := uuid.New()

	d.users.EXPECT().GetByEmail(ctx, "ada@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("StrongP@ss123").Return("$argon2id$hashed", nil)
	d.transactor.EXPECT().RunAtomic(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn ports.UnitOfWork) error { return fn(ctx, nil) },
	)
	d.users.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, u *domain.User) error {
			assert.Equal(t, "ada@example.com", u.Email)
			assert.Equal(t, "$argon2id$hashed", u.PasswordHash)
			assert.True(t, u.IsActive)
			return nil
		},
	)
	d.wallets.EXPECT().CreateWallet(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.Wallet{ID: walletID}, nil)

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{
		Email:     "  Ada@Example.com ",
		Password:  "StrongP@ss123",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resp.UserID)
	assert.Equal(t, walletID, resp.WalletID)
	assert.Equal(t, "ada@example.com", resp.Email)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.users.EXPECT().GetByEmail(ctx, "taken@example.com").Return(&domain.User{Email: "taken@example.com"}, nil)

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{Email: "taken@example.com", Password: "password"})
	assert.Nil(t, resp)
	assert.True(t, apperror.HasCode(err, "AUTH_002"))
}

func TestAuthService_Register_WalletFailureFailsRegistration(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.users.EXPECT().GetByEmail(ctx, gomock.Any()).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.transactor.EXPECT().RunAtomic(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn ports.UnitOfWork) error { return fn(ctx, nil) },
	)
	d.users.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.wallets.EXPECT().CreateWallet(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("seed cash holding: boom"))

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{Email: "a@b.co", Password: "password"})
	assert.Nil(t, resp)
	assert.True(t, apperror.HasCode(err, "SYS_001"))
}

func TestAuthService_Register_CreatesUserWalletAndCashTogether(t *testing.T) {
	ledger := newMemoryLedger()
	wallets := NewWalletService(walletRepo{ledger}, ledger, transactionLog{ledger}, ledger, decimal.NewFromInt(100000), zerolog.Nop())
	svc := NewAuthService(ledger, wallets, ledger, NewArgon2HashService(testArgon2Params),
		NewJWTTokenService(testJWTSecret, time.Hour, "crypta-wallet"), zerolog.Nop())
	ctx := context.Background()

	resp, err := svc.Register(ctx, ports.RegisterRequest{Email: "ada@example.com", Password: "StrongP@ss123"})
	require.NoError(t, err)

	summary, err := wallets.GetWallet(ctx, resp.UserID)
	require.NoError(t, err)
	assert.Equal(t, resp.WalletID, summary.Wallet.ID)
	assert.True(t, summary.CashBalance().Equal(decimal.NewFromInt(100000)))

	token, _, err := svc.Login(ctx, "ada@example.com", "StrongP@ss123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestAuthService_Login(t *testing.T) {
	userID := uuid.New()
	active := &domain.User{ID: userID, Email: "ada@example.com", PasswordHash: "hash", IsActive: true}
	inactive := &domain.User{ID: userID, Email: "ada@example.com", PasswordHash: "hash", IsActive: false}

	tests := []struct {
		name     string
		setup    func(d *authTestDeps)
		wantCode string
	}{
		{
			name: "success",
			setup: func(d *authTestDeps) {
				d.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(active, nil)
				d.hashSvc.EXPECT().Verify("secret", "hash").Return(true, nil)
				d.tokenSvc.EXPECT().Generate(userID, "ada@example.com").Return("jwt", time.Now().Add(time.Hour), nil)
			},
		},
		{
			name: "unknown email",
			setup: func(d *authTestDeps) {
				d.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(nil, nil)
			},
			wantCode: "AUTH_001",
		},
		{
			name: "wrong password",
			setup: func(d *authTestDeps) {
				d.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(active, nil)
				d.hashSvc.EXPECT().Verify("secret", "hash").Return(false, nil)
			},
			wantCode: "AUTH_001",
		},
		{
			name: "inactive user",
			setup: func(d *authTestDeps) {
				d.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(inactive, nil)
				d.hashSvc.EXPECT().Verify("secret", "hash").Return(true, nil)
			},
			wantCode: "AUTH_004",
		},
		{
			name: "repository failure",
			setup: func(d *authTestDeps) {
				d.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(nil, errors.New("db down"))
			},
			wantCode: "SYS_001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAuthService(t)
			tt.setup(d)

			token, _, err := d.svc.Login(context.Background(), "Ada@example.com", "secret")
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "jwt", token)
				return
			}
			assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
		})
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/cache"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/config"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/ratelimit"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
	"github.com/thiago-salvador/clubedolivro-sub001/mocks"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "access-secret-for-tests",
		RefreshSecret:   "refresh-secret-for-tests",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "clubedolivro-test",
	}
}

func newServiceWithMock(t *testing.T) (*Service, *mocks.MockStorage, *token.Service) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	st := mocks.NewMockStorage(ctrl)
	tokens := token.New(testAuthConfig())

	return New(st, tokens, testAuthConfig()), st, tokens
}

func testUser(t *testing.T, email, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Reader",
		Role:         models.RoleStudent,
		PasswordHash: string(hash),
	}
}

func TestRegisterUser_Success(t *testing.T) {
	svc, st, tokens := newServiceWithMock(t)
	ctx := context.Background()

	var saved *models.User

	st.EXPECT().UserByEmail(gomock.Any(), "ana@club.dev").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		})

	pair, public, err := svc.RegisterUser(ctx, "  Ana@Club.DEV ", "senha123", "  Ana  ")
	require.NoError(t, err)
	require.NotNil(t, saved)

	// E-mail нормализован, роль — student, пароль в хранилище только хэшем.
	require.Equal(t, "ana@club.dev", saved.Email)
	require.Equal(t, models.RoleStudent, saved.Role)
	require.Equal(t, "Ana", saved.Name)
	require.NotEqual(t, "senha123", saved.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("senha123")))

	require.Equal(t, "ana@club.dev", public.Email)

	claims, err := tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, saved.ID.String(), claims.UserID)
	require.Equal(t, models.RoleStudent, claims.Role)

	_, err = tokens.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
}

func TestRegisterUser_Validation(t *testing.T) {
	svc, _, _ := newServiceWithMock(t)
	ctx := context.Background()

	// До хранилища дело не доходит: mock без ожиданий.
	_, _, err := svc.RegisterUser(ctx, "not-an-email", "senha123", "Ana")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = svc.RegisterUser(ctx, "ana@club.dev", "short1", "Ana")
	require.ErrorIs(t, err, ErrWeakPassword)

	// Буквы без цифр не проходят политику.
	_, _, err = svc.RegisterUser(ctx, "ana@club.dev", "onlyletters", "Ana")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUser_EmailTaken(t *testing.T) {
	svc, st, _ := newServiceWithMock(t)
	ctx := context.Background()

	st.EXPECT().UserByEmail(gomock.Any(), "ana@club.dev").
		Return(testUser(t, "ana@club.dev", "senha123"), nil)

	_, _, err := svc.RegisterUser(ctx, "ana@club.dev", "senha123", "Ana")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_SaveConflict(t *testing.T) {
	// Гонка двух регистраций: проверка не нашла, запись упёрлась в уникальность.
	svc, st, _ := newServiceWithMock(t)
	ctx := context.Background()

	st.EXPECT().UserByEmail(gomock.Any(), "ana@club.dev").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists)

	_, _, err := svc.RegisterUser(ctx, "ana@club.dev", "senha123", "Ana")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginUser_Success(t *testing.T) {
	svc, st, tokens := newServiceWithMock(t)
	ctx := context.Background()

	user := testUser(t, "ana@club.dev", "senha123")
	st.EXPECT().UserByEmail(gomock.Any(), "ana@club.dev").Return(user, nil)

	pair, public, err := svc.LoginUser(ctx, "Ana@Club.Dev", "senha123", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, user.ID, public.ID)

	claims, err := tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), claims.UserID)
}

func TestLoginUser_BadCredentialsIndistinguishable(t *testing.T) {
	svc, st, _ := newServiceWithMock(t)
	ctx := context.Background()

	st.EXPECT().UserByEmail(gomock.Any(), "ghost@club.dev").
		Return(nil, storage.ErrNotFound)

	_, _, errUnknown := svc.LoginUser(ctx, "ghost@club.dev", "senha123", "10.0.0.1")
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)

	user := testUser(t, "ana@club.dev", "senha123")
	st.EXPECT().UserByEmail(gomock.Any(), "ana@club.dev").Return(user, nil)

	_, _, errWrong := svc.LoginUser(ctx, "ana@club.dev", "wrong-pass1", "10.0.0.1")
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)

	// Некорректный e-mail и пустой пароль дают тот же отказ без похода в хранилище.
	_, _, err := svc.LoginUser(ctx, "broken email", "senha123", "10.0.0.1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.LoginUser(ctx, "ana@club.dev", "", "10.0.0.1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_Throttled(t *testing.T) {
	svc, st, _ := newServiceWithMock(t)
	ctx := context.Background()

	svc.SetLoginLimiter(ratelimit.New(ratelimit.Config{
		Window: time.Minute,
		Max:    2,
	}))

	st.EXPECT().UserByEmail(gomock.Any(), "ana@club.dev").
		Return(nil, storage.ErrNotFound).Times(3)

	for i := 0; i < 2; i++ {
		_, _, err := svc.LoginUser(ctx, "ana@club.dev", "senha123", "10.0.0.1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, _, err := svc.LoginUser(ctx, "ana@club.dev", "senha123", "10.0.0.1")

	var tooMany *TooManyAttemptsError
	require.ErrorAs(t, err, &tooMany)
	require.Positive(t, tooMany.RetryAfter)

	// Лимит ключуется парой email+IP: другой адрес не задет.
	_, _, err = svc.LoginUser(ctx, "ana@club.dev", "senha123", "10.0.0.2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshToken_Rotation(t *testing.T) {
	svc, st, tokens := newServiceWithMock(t)
	ctx := context.Background()

	svc.SetRevocationCache(cache.NewMemory())

	user := testUser(t, "ana@club.dev", "senha123")
	pair, err := tokens.IssuePair(user, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	fresh, err := svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	_, err = tokens.VerifyAccess(fresh.AccessToken)
	require.NoError(t, err)

	// Предъявленный токен отозван ротацией: повтор не проходит.
	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshToken_AccessTokenRejected(t *testing.T) {
	svc, _, tokens := newServiceWithMock(t)
	ctx := context.Background()

	user := testUser(t, "ana@club.dev", "senha123")
	access, _, err := tokens.IssueAccess(user, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.RefreshToken(ctx, access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken_Expired(t *testing.T) {
	svc, _, _ := newServiceWithMock(t)
	ctx := context.Background()

	expiredCfg := testAuthConfig()
	expiredCfg.RefreshTokenTTL = -time.Second

	user := testUser(t, "ana@club.dev", "senha123")
	refresh, _, err := token.New(expiredCfg).IssueRefresh(user, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.RefreshToken(ctx, refresh)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshToken_UserGone(t *testing.T) {
	svc, st, tokens := newServiceWithMock(t)
	ctx := context.Background()

	user := testUser(t, "ana@club.dev", "senha123")
	pair, err := tokens.IssuePair(user, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), user.ID).
		Return(nil, storage.ErrNotFound)

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeToken_Logout(t *testing.T) {
	svc, _, tokens := newServiceWithMock(t)
	ctx := context.Background()

	svc.SetRevocationCache(cache.NewMemory())

	user := testUser(t, "ana@club.dev", "senha123")
	pair, err := tokens.IssuePair(user, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(ctx, pair.RefreshToken))

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevokeToken_Garbage(t *testing.T) {
	svc, _, _ := newServiceWithMock(t)

	err := svc.RevokeToken(context.Background(), "not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.False(t, errors.Is(err, ErrTokenExpired))
}

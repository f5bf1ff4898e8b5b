package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/gateway"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
)

// authResponse — форма успешного ответа register/login.
type authResponse struct {
	User            *models.PublicUser `json:"user"`
	AccessToken     string             `json:"accessToken"`
	RefreshToken    string             `json:"refreshToken"`
	AccessExpiresAt time.Time          `json:"accessExpiresAt"`
}

func newAuthResponse(pair *models.TokenPair, user *models.PublicUser) authResponse {
	return authResponse{
		User:            user,
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	}
}

// Register — POST /auth/register.
func (h *Handlers) Register(ctx context.Context, req *gateway.Request) gateway.Envelope {
	pair, user, err := h.svc.RegisterUser(ctx,
		stringField(req.Body, "email"),
		stringField(req.Body, "password"),
		stringField(req.Body, "name"),
	)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(newAuthResponse(pair, user), "registered")
}

// Login — POST /auth/login.
func (h *Handlers) Login(ctx context.Context, req *gateway.Request) gateway.Envelope {
	pair, user, err := h.svc.LoginUser(ctx,
		stringField(req.Body, "email"),
		stringField(req.Body, "password"),
		gateway.ClientKey(req.Headers),
	)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(newAuthResponse(pair, user), "logged in")
}

// Refresh — POST /auth/refresh. Ротация: старый refresh-токен отзывается.
func (h *Handlers) Refresh(ctx context.Context, req *gateway.Request) gateway.Envelope {
	refresh := stringField(req.Body, "refreshToken")
	if refresh == "" {
		return gateway.FailDetails(gateway.CodeValidation, "refreshToken is required",
			http.StatusBadRequest, map[string]string{"field": "refreshToken"})
	}

	pair, err := h.svc.RefreshToken(ctx, refresh)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OK(map[string]any{
		"accessToken":     pair.AccessToken,
		"refreshToken":    pair.RefreshToken,
		"accessExpiresAt": pair.AccessExpiresAt,
	})
}

// Logout — POST /auth/logout: отзывает предъявленный refresh-токен.
func (h *Handlers) Logout(ctx context.Context, req *gateway.Request) gateway.Envelope {
	refresh := stringField(req.Body, "refreshToken")
	if refresh == "" {
		return gateway.FailDetails(gateway.CodeValidation, "refreshToken is required",
			http.StatusBadRequest, map[string]string{"field": "refreshToken"})
	}

	if err := h.svc.RevokeToken(ctx, refresh); err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(nil, "logged out")
}

// Me — GET /me: пользователь, прикреплённый маршрутным гейтом.
func (h *Handlers) Me(_ context.Context, req *gateway.Request) gateway.Envelope {
	return gateway.OK(req.User)
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService     *service.AuthService
	maskLoginErrors bool
}

// NewAuthHandlers creates new auth handlers. With maskLoginErrors set, login
// answers unknown and disabled identities like a bad signature.
func NewAuthHandlers(authService *service.AuthService, maskLoginErrors bool) *AuthHandlers {
	return &AuthHandlers{
		authService:     authService,
		maskLoginErrors: maskLoginErrors,
	}
}

type nonceRequest struct {
	Address string `json:"address" binding:"required"`
}

type nonceResponse struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

type loginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type tokenResponse struct {
	Identity     *core.IdentitySummary `json:"identity,omitempty"`
	AccessToken  string                `json:"access_token"`
	RefreshToken string                `json:"refresh_token"`
	TokenType    string                `json:"token_type"`
	ExpiresIn    int64                 `json:"expires_in"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	AccessToken string `json:"access_token"`
}

type meResponse struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Role      core.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Nonce issues a sign-in challenge for an address
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithCode(c, CodeInvalidRequest)
		return
	}

	challenge, err := h.authService.RequestNonce(c.Request.Context(), req.Address, requestMeta(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, nonceResponse{
		Address: challenge.Address,
		Nonce:   challenge.Nonce,
		Message: challenge.Message,
	})
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithCode(c, CodeInvalidRequest)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Address, req.Signature, requestMeta(c))
	if err != nil {
		if h.maskLoginErrors && (errors.Is(err, core.ErrUserNotFound) || errors.Is(err, core.ErrAccountDisabled)) {
			_ = c.Error(err)
			abortWithCode(c, core.CodeSignatureInvalid)
			return
		}
		abortWithError(c, err)
		return
	}

	resp := h.tokenResponse(result.Tokens)
	resp.Identity = &result.Identity
	c.JSON(http.StatusOK, resp)
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithCode(c, CodeInvalidRequest)
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, requestMeta(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.tokenResponse(pair))
}

// Logout revokes the presented access token. The token may come in the body
// or as a Bearer header.
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithCode(c, CodeInvalidRequest)
			return
		}
	}
	if req.AccessToken == "" {
		token, ok := bearerToken(c)
		if !ok {
			abortWithCode(c, CodeInvalidRequest)
			return
		}
		req.AccessToken = token
	}

	if err := h.authService.Logout(c.Request.Context(), req.AccessToken, requestMeta(c)); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Me returns information about the authenticated identity
func (h *AuthHandlers) Me(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		abortWithCode(c, CodeInternal)
		return
	}

	c.JSON(http.StatusOK, meResponse{
		ID:        claims.IdentityID,
		Address:   claims.Address,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt,
	})
}

// Authorize confirms the bearer token is valid. It is meant for gateways
// doing forward auth.
func (h *AuthHandlers) Authorize(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		abortWithCode(c, CodeInternal)
		return
	}

	c.Header("X-Auth-Identity", claims.IdentityID)
	c.Header("X-Auth-Address", claims.Address)
	c.Header("X-Auth-Role", string(claims.Role))
	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    claims.Address,
		"role":       claims.Role,
	})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandlers) tokenResponse(pair *core.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.authService.AccessTTL().Seconds()),
	}
}

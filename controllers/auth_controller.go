package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bumisarana/absensi-client/apiclient"
	"github.com/bumisarana/absensi-client/auth"
	"github.com/bumisarana/absensi-client/middleware"
	"github.com/bumisarana/absensi-client/utils"
)

// sessionTTL is the lifetime of the gateway's own session cookie. The
// upstream credential has its own lifetime and is re-validated on boot.
const sessionTTL = 12 * time.Hour

// AuthController bridges the browser to the two-step NIK/OTP login flow.
type AuthController struct {
	flow   *auth.Flow
	secret []byte
}

func NewAuthController(flow *auth.Flow, secret []byte) *AuthController {
	return &AuthController{flow: flow, secret: secret}
}

// GenerateOTP triggers OTP delivery for the given employee NIK.
func (a *AuthController) GenerateOTP(ctx *gin.Context) {
	var req struct {
		KarNik string `json:"kar_nik" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "kar_nik is required")
		return
	}

	if err := a.flow.RequestOTP(ctx.Request.Context(), req.KarNik); err != nil {
		writeFlowError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"otp_sent": true})
}

// Login verifies the OTP, stores the upstream credential, and issues the
// gateway session cookie.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		KarNik string `json:"kar_nik" binding:"required"`
		Otp    string `json:"otp" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "kar_nik and otp are required")
		return
	}

	if err := a.flow.VerifyOTP(ctx.Request.Context(), req.KarNik, req.Otp); err != nil {
		writeFlowError(ctx, err)
		return
	}

	res, err := a.flow.CheckAuth(ctx.Request.Context())
	if err != nil || !res.Authenticated {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "login succeeded but session could not be read back")
		return
	}

	token, err := utils.GenerateGatewayToken(a.secret, res.User.KarNik, sessionTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to issue session")
		return
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookie, token, int(sessionTTL.Seconds()), "/", "", false, true)

	utils.Success(ctx, gin.H{"user": res.User})
}

// Session reports whether a stored credential is still usable. Mirrors the
// boot-time check: a network failure falls back to the cached identity.
func (a *AuthController) Session(ctx *gin.Context) {
	res, err := a.flow.CheckAuth(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "session check failed")
		return
	}
	utils.Success(ctx, gin.H{
		"authenticated": res.Authenticated,
		"from_cache":    res.FromCache,
		"user":          res.User,
	})
}

// Logout revokes the upstream credential best-effort, always clears the
// local session, and drops the gateway cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	if err := a.flow.Logout(ctx.Request.Context()); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to clear session")
		return
	}
	ctx.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	utils.Success(ctx, gin.H{"logged_out": true})
}

// writeFlowError maps login-flow errors onto the response envelope. Upstream
// rejections keep their message so the browser can show "OTP salah" & co.
func writeFlowError(ctx *gin.Context, err error) {
	var vErr *auth.ValidationError
	if errors.As(err, &vErr) {
		utils.Error(ctx, http.StatusBadRequest, 40010, vErr.Error())
		return
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 || status > 599 {
			// success=false inside a 200 envelope: an upstream denial.
			status = http.StatusBadRequest
		}
		utils.Error(ctx, status, 40020, apiErr.Message)
		return
	}
	if apiclient.IsNetworkError(err) {
		utils.Error(ctx, http.StatusBadGateway, 50220, "attendance service unreachable")
		return
	}
	utils.Error(ctx, http.StatusInternalServerError, 50000, err.Error())
}

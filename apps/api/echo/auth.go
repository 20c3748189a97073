package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/auth"
	"github.com/urfu-lab/studyhub/core/refresh"
	"github.com/urfu-lab/studyhub/core/student"
)

const (
	contextTokenKey   = "userToken"
	contextStudentKey = "student"
)

var (
	errCredentialsRequired  = errors.New("username and password are required")
	errRefreshTokenRequired = errors.New("refresh token is required")
)

type authApi struct {
	tokens     *auth.Manager
	refreshSvc *refresh.Service
	studentSvc *student.Service
	validate   *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := authApi{
		tokens:     opts.Tokens,
		refreshSvc: opts.RefreshSvc,
		studentSvc: opts.StudentSvc,
		validate:   opts.Validate,
	}

	cg := g.Group("/core")

	// un-authed endpoints
	ag := cg.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/refresh", api.refresh)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/logout", api.logout, jwt)
	cg.GET("/me", api.me, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	st, err := api.studentSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errInvalidCredentials
		}
		return errors.Wrap(err, "authenticating")
	}
	if err = api.studentSvc.SetLastLogin(ctx.Request().Context(), &st); err != nil {
		return errors.Wrap(err, "setting last login")
	}

	access, err := api.tokens.Issue(identityOf(st))
	if err != nil {
		return errors.Wrap(err, "issuing access token")
	}
	refreshToken, err := api.refreshSvc.Create(ctx.Request().Context(), st.ID, ctx.Request().UserAgent(), ctx.RealIP())
	if err != nil {
		return errors.Wrap(err, "creating refresh token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		TokenPair: TokenPair{Access: access, Refresh: refreshToken},
		UserID:    st.ID.String(),
		Username:  st.Username,
		FullName:  st.FullName,
	})
}

func (api *authApi) refresh(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	newRefresh, studentID, err := api.refreshSvc.Rotate(reqCtx, data.Refresh, ctx.Request().UserAgent(), ctx.RealIP())
	if err != nil {
		if errors.Cause(err) == refresh.ErrInvalidToken {
			return errInvalidRefresh
		}
		return errors.Wrap(err, "rotating refresh token")
	}

	st, err := api.studentSvc.GetByID(reqCtx, studentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errInvalidRefresh
		}
		return errors.Wrap(err, "finding student by ID")
	}
	if !st.IsActive {
		_ = api.refreshSvc.Invalidate(reqCtx, newRefresh)
		return errInvalidRefresh
	}

	access, err := api.tokens.Issue(identityOf(st))
	if err != nil {
		return errors.Wrap(err, "issuing access token")
	}
	return ctx.JSON(http.StatusOK, TokenPair{Access: access, Refresh: newRefresh})
}

func (api *authApi) logout(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err == nil && data.Refresh != "" {
		if err = api.refreshSvc.Invalidate(ctx.Request().Context(), data.Refresh); err != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(err, "invalidating refresh token"))
		}
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data student.RequestPasswordReset
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RequestPasswordReset")
	}

	if email := core.CleanString(data.Email, true /* lower */); email != "" {
		if err := api.studentSvc.RequestPasswordReset(ctx.Request().Context(), email); err != nil {
			// do not return errors to attackers
			ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
		}
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data student.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.studentSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authApi) me(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.studentSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

// Context helpers

func identityOf(st student.Student) auth.Identity {
	return auth.Identity{UserID: st.ID, Username: st.Username, FullName: st.FullName}
}

// getContextStudent loads the authenticated student once per request.
func getContextStudent(ctx echo.Context, svc *student.Service) (student.Student, error) {
	if st, ok := ctx.Get(contextStudentKey).(student.Student); ok {
		return st, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return student.Student{}, err
	}
	id, err := claims.Identity()
	if err != nil {
		return student.Student{}, errJWTInvalid
	}

	st, err := svc.GetByID(ctx.Request().Context(), id.UserID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return student.Student{}, errUnauthorized
		}
		return student.Student{}, errors.Wrap(err, "finding student by ID")
	}
	if !st.IsActive {
		return student.Student{}, errUnauthorized
	}
	ctx.Set(contextStudentKey, st)
	return st, nil
}

type (
	LoginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	RefreshRequest struct {
		Refresh string `json:"refresh"`
	}

	TokenPair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}

	LoginResponse struct {
		TokenPair
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		FullName string `json:"full_name"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	if lr.Username == "" || lr.Password == "" {
		return core.NewValidationError(errCredentialsRequired)
	}
	return nil
}

func (rr *RefreshRequest) Validate() error {
	rr.Refresh = core.CleanString(rr.Refresh)
	if rr.Refresh == "" {
		return core.NewValidationError(errRefreshTokenRequired)
	}
	return nil
}

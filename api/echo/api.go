package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/sessiongate/cookie"
	"go.pilab.hu/sessiongate/domain"
	"go.pilab.hu/sessiongate/internal/metrics"
	"go.pilab.hu/sessiongate/services"
)

// AuthAPI exposes the authentication entry points. Every handler speaks
// the ActionResult envelope; the session cookie is the only state a
// successful call leaves behind in the browser.
type AuthAPI struct {
	auth       domain.PrimaryAuthenticator
	sessions   *services.SessionManager
	reconciler *services.AccountReconciler
	devMode    bool
}

func NewAuthAPI(
	auth domain.PrimaryAuthenticator,
	sessions *services.SessionManager,
	reconciler *services.AccountReconciler,
	devMode bool,
) *AuthAPI {
	return &AuthAPI{
		auth:       auth,
		sessions:   sessions,
		reconciler: reconciler,
		devMode:    devMode,
	}
}

func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/register", a.RegisterHandler)
	e.POST("/auth/login", a.LoginHandler)
	e.POST("/auth/federated", a.FederatedLoginHandler)
	e.POST("/auth/logout", a.LogoutHandler)
	e.GET("/auth/me", a.MeHandler)
}

func (a *AuthAPI) cookieStore(c echo.Context) *cookie.Store {
	resp := c.Response()
	return cookie.NewStore(resp, c.Request(), func() bool { return resp.Committed }, a.devMode)
}

// completeSignIn runs the post-authentication sequence shared by the
// password, federated and registration flows: ensure the directory record
// exists, then establish the session. A record created in this attempt is
// deleted again if establishment fails, so a half-registered account never
// survives the request.
func (a *AuthAPI) completeSignIn(c echo.Context, res *domain.AuthResult) error {
	ctx := c.Request().Context()

	_, created, err := a.reconciler.EnsureUserRecord(ctx, res.SubjectID, res.Profile)
	if err != nil {
		return err
	}
	if _, err := a.sessions.Establish(ctx, a.cookieStore(c), res.IDToken); err != nil {
		if created {
			a.reconciler.RollbackUserRecord(ctx, res.SubjectID)
		}
		return err
	}
	return nil
}

func (a *AuthAPI) RegisterHandler(c echo.Context) error {
	name := c.FormValue("name")
	email := c.FormValue("email")
	password := c.FormValue("password")
	confirm := c.FormValue("confirmPassword")

	if errs := validateRegistration(email, password, confirm); errs != nil {
		return c.JSON(http.StatusBadRequest, ActionResult{
			Errors: errs, Name: name, Email: email,
		})
	}

	ctx := c.Request().Context()
	res, err := a.auth.SignUp(ctx, email, password, name)
	if err != nil {
		if errors.Is(err, domain.ErrEmailExists) {
			return c.JSON(http.StatusConflict, ActionResult{
				Errors: fieldError("email", msgEmailTaken),
				Name:   name, Email: email,
			})
		}
		log.Error().Err(err).Msg("sign-up failed")
		return c.JSON(http.StatusInternalServerError, ActionResult{
			GeneralError: msgTryLater, Name: name, Email: email,
		})
	}

	if err := a.completeSignIn(c, res); err != nil {
		log.Error().Err(err).Str("subjectID", res.SubjectID).Msg("registration completion failed")
		return c.JSON(http.StatusInternalServerError, ActionResult{
			GeneralError: msgTryLater, Name: name, Email: email,
		})
	}

	metrics.UserRegisteredTotal.Inc()
	return c.JSON(http.StatusOK, ActionResult{Success: true, SubjectID: res.SubjectID})
}

func (a *AuthAPI) LoginHandler(c echo.Context) error {
	email := c.FormValue("email")
	password := c.FormValue("password")

	if errs := validateLogin(email, password); errs != nil {
		return c.JSON(http.StatusBadRequest, ActionResult{Errors: errs, Email: email})
	}

	ctx := c.Request().Context()
	res, err := a.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginFailureTotal.Inc()
			return c.JSON(http.StatusUnauthorized, ActionResult{
				Errors: fieldError("password", msgBadCredentials),
				Email:  email,
			})
		}
		log.Error().Err(err).Msg("password sign-in failed")
		return c.JSON(http.StatusInternalServerError, ActionResult{
			GeneralError: msgTryLater, Email: email,
		})
	}

	if err := a.completeSignIn(c, res); err != nil {
		log.Error().Err(err).Str("subjectID", res.SubjectID).Msg("login completion failed")
		return c.JSON(http.StatusInternalServerError, ActionResult{
			GeneralError: msgTryLater, Email: email,
		})
	}

	metrics.LoginSuccessTotal.Inc()
	return c.JSON(http.StatusOK, ActionResult{Success: true, SubjectID: res.SubjectID})
}

func (a *AuthAPI) FederatedLoginHandler(c echo.Context) error {
	providerID := c.FormValue("providerId")
	idpToken := c.FormValue("idpToken")
	if providerID == "" || idpToken == "" {
		return c.JSON(http.StatusBadRequest, ActionResult{
			GeneralError: "providerId and idpToken are required",
		})
	}

	ctx := c.Request().Context()
	res, err := a.auth.SignInWithIdP(ctx, providerID, idpToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginFailureTotal.Inc()
			return c.JSON(http.StatusUnauthorized, ActionResult{
				GeneralError: msgBadCredentials,
			})
		}
		log.Error().Err(err).Str("providerID", providerID).Msg("federated sign-in failed")
		return c.JSON(http.StatusInternalServerError, ActionResult{GeneralError: msgTryLater})
	}

	if err := a.completeSignIn(c, res); err != nil {
		log.Error().Err(err).Str("subjectID", res.SubjectID).Msg("federated completion failed")
		return c.JSON(http.StatusInternalServerError, ActionResult{GeneralError: msgTryLater})
	}

	metrics.LoginSuccessTotal.Inc()
	return c.JSON(http.StatusOK, ActionResult{Success: true, SubjectID: res.SubjectID})
}

// LogoutHandler always lands the browser on the public home page. Server
// side failures are handled inside Terminate; from the caller's point of
// view logout cannot fail.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	a.sessions.Terminate(c.Request().Context(), a.cookieStore(c))
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *AuthAPI) MeHandler(c echo.Context) error {
	identity, ok := a.sessions.Current(c.Request().Context(), a.cookieStore(c))
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"subjectId":   identity.SubjectID,
		"email":       identity.Email,
		"displayName": identity.DisplayName,
	})
}

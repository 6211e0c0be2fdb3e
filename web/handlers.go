// Package web serves the portal's server-rendered pages. Handlers stay
// thin: they translate forms and cookies into engine calls and engine
// errors into the messages each page shows.
package web

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nexhealth/nexauth"
	"github.com/nexhealth/nexauth/classify"
	"github.com/nexhealth/nexauth/session"
)

// User-facing form messages.
const (
	msgEmailNotRegistered = "Correo no registrado."
	msgBadPassword        = "Contraseña incorrecta."
	msgBadCode            = "Código incorrecto."
	msgAllFieldsRequired  = "Todos los campos son obligatorios"
	msgEmailTaken         = "El correo ya está en uso"
	msgPasswordTooShort   = "La contraseña debe tener al menos 6 caracteres."
	msgTooManyAttempts    = "Demasiados intentos. Inténtalo de nuevo más tarde."
	msgMailFailed         = "No se pudo enviar el correo de verificación. Inténtalo de nuevo."
	msgModelUnavailable   = "Error: Modelo no disponible. Revisa los logs del servidor."
)

// Handler holds the dependencies shared by every route.
type Handler struct {
	engine        *nexauth.Engine
	classifier    classify.Classifier
	logger        *logrus.Logger
	pages         map[string]*template.Template
	secureCookies bool
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.WithFields(logrus.Fields{"op": op, "path": r.URL.Path, "error": err}).Error("request failed")
	http.Error(w, "error interno del servidor", http.StatusInternalServerError)
}

// welcome renders the public landing page.
func (h *Handler) welcome(w http.ResponseWriter, r *http.Request) {
	h.render(w, "welcome", viewData{})
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", viewData{})
}

func (h *Handler) loginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	token, err := h.engine.BeginLogin(r.Context(), sessionToken(r), email, password)
	if err != nil {
		data := viewData{Email: email}
		switch {
		case errors.Is(err, nexauth.ErrEmailNotRegistered):
			data.Error = msgEmailNotRegistered
		case errors.Is(err, nexauth.ErrBadPassword):
			data.Error = msgBadPassword
		case errors.Is(err, nexauth.ErrLoginRateLimited):
			data.Error = msgTooManyAttempts
		case errors.Is(err, nexauth.ErrNotificationFailed):
			data.Error = msgMailFailed
		default:
			h.internalError(w, r, "begin_login", err)
			return
		}
		h.render(w, "login", data)
		return
	}

	h.setSessionToken(w, token)
	http.Redirect(w, r, "/verify_code/", http.StatusFound)
}

// verifyCodePage requires a pending login challenge; anyone else goes
// back to the login form, exactly like arriving without logging in.
func (h *Handler) verifyCodePage(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.Inspect(r.Context(), sessionToken(r))
	if err != nil || info.Login != session.LoginAwaitingCode {
		http.Redirect(w, r, "/login/", http.StatusFound)
		return
	}
	h.render(w, "verify_code", viewData{})
}

func (h *Handler) verifyCodeSubmit(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")

	token, err := h.engine.ConfirmLogin(r.Context(), sessionToken(r), code)
	switch {
	case err == nil:
		h.setSessionToken(w, token)
		http.Redirect(w, r, "/home/", http.StatusFound)
	case errors.Is(err, nexauth.ErrBadCode):
		h.render(w, "verify_code", viewData{Error: msgBadCode})
	case errors.Is(err, nexauth.ErrCodeAttemptsExceeded),
		errors.Is(err, nexauth.ErrFlowState),
		errors.Is(err, nexauth.ErrSessionNotFound),
		errors.Is(err, nexauth.ErrTokenInvalid):
		// The challenge is gone; the whole flow restarts.
		http.Redirect(w, r, "/login/", http.StatusFound)
	default:
		h.internalError(w, r, "confirm_login", err)
	}
}

func (h *Handler) registerPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register", viewData{})
}

func (h *Handler) registerSubmit(w http.ResponseWriter, r *http.Request) {
	input := nexauth.CreateAccountInput{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Password:  r.PostFormValue("password"),
	}

	_, err := h.engine.CreateAccount(r.Context(), input)
	if err != nil {
		data := viewData{
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Email:     input.Email,
		}
		switch {
		case errors.Is(err, nexauth.ErrInvalidInput):
			data.Error = msgAllFieldsRequired
		case errors.Is(err, nexauth.ErrEmailTaken):
			data.Error = msgEmailTaken
		case errors.Is(err, nexauth.ErrPasswordPolicy):
			data.Error = msgPasswordTooShort
		default:
			h.internalError(w, r, "create_account", err)
			return
		}
		h.render(w, "register", data)
		return
	}

	http.Redirect(w, r, "/login/", http.StatusFound)
}

func (h *Handler) forgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "forgot_password", viewData{})
}

func (h *Handler) forgotPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")

	token, err := h.engine.BeginPasswordReset(r.Context(), sessionToken(r), email)
	if err != nil {
		data := viewData{Email: email}
		switch {
		case errors.Is(err, nexauth.ErrEmailNotRegistered):
			data.Error = msgEmailNotRegistered
		case errors.Is(err, nexauth.ErrResetRateLimited):
			data.Error = msgTooManyAttempts
		case errors.Is(err, nexauth.ErrNotificationFailed):
			data.Error = msgMailFailed
		default:
			h.internalError(w, r, "begin_password_reset", err)
			return
		}
		h.render(w, "forgot_password", data)
		return
	}

	h.setSessionToken(w, token)
	http.Redirect(w, r, "/verify_reset_code/", http.StatusFound)
}

func (h *Handler) verifyResetCodePage(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.Inspect(r.Context(), sessionToken(r))
	if err != nil || info.Reset != session.ResetAwaitingCode {
		http.Redirect(w, r, "/forgot_password/", http.StatusFound)
		return
	}
	h.render(w, "verify_reset_code", viewData{})
}

func (h *Handler) verifyResetCodeSubmit(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")

	token, err := h.engine.ConfirmResetCode(r.Context(), sessionToken(r), code)
	switch {
	case err == nil:
		h.setSessionToken(w, token)
		http.Redirect(w, r, "/reset_password/", http.StatusFound)
	case errors.Is(err, nexauth.ErrBadCode):
		h.render(w, "verify_reset_code", viewData{Error: msgBadCode})
	case errors.Is(err, nexauth.ErrCodeAttemptsExceeded),
		errors.Is(err, nexauth.ErrFlowState),
		errors.Is(err, nexauth.ErrSessionNotFound),
		errors.Is(err, nexauth.ErrTokenInvalid):
		http.Redirect(w, r, "/forgot_password/", http.StatusFound)
	default:
		h.internalError(w, r, "confirm_reset_code", err)
	}
}

func (h *Handler) resetPasswordPage(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.Inspect(r.Context(), sessionToken(r))
	if err != nil || info.Reset != session.ResetAuthorized {
		http.Redirect(w, r, "/forgot_password/", http.StatusFound)
		return
	}
	h.render(w, "reset_password", viewData{})
}

func (h *Handler) resetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	password := r.PostFormValue("password")

	err := h.engine.CompletePasswordReset(r.Context(), sessionToken(r), password)
	switch {
	case err == nil:
		// The reset flushed every session of the user, including the
		// one behind this cookie.
		h.clearSessionToken(w)
		http.Redirect(w, r, "/login/", http.StatusFound)
	case errors.Is(err, nexauth.ErrPasswordPolicy):
		h.render(w, "reset_password", viewData{Error: msgPasswordTooShort})
	case errors.Is(err, nexauth.ErrFlowState),
		errors.Is(err, nexauth.ErrSessionNotFound),
		errors.Is(err, nexauth.ErrTokenInvalid):
		http.Redirect(w, r, "/forgot_password/", http.StatusFound)
	default:
		h.internalError(w, r, "complete_password_reset", err)
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Logout(r.Context(), sessionToken(r)); err != nil {
		h.logger.WithField("error", err).Error("logout failed")
	}
	h.clearSessionToken(w)
	http.Redirect(w, r, "/login/", http.StatusFound)
}

// requireAuth wraps pages that need a fully authenticated session.
func (h *Handler) requireAuth(next func(http.ResponseWriter, *http.Request, *nexauth.AuthResult)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.engine.Validate(r.Context(), sessionToken(r))
		if err != nil {
			http.Redirect(w, r, "/login/", http.StatusFound)
			return
		}
		next(w, r, res)
	}
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request, res *nexauth.AuthResult) {
	h.render(w, "home", viewData{Email: res.Email})
}

func (h *Handler) historiaClinica(w http.ResponseWriter, r *http.Request, res *nexauth.AuthResult) {
	h.render(w, "historia_clinica", viewData{Email: res.Email})
}

func (h *Handler) prediccionPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "hacer_prediccion", viewData{})
}

func (h *Handler) prediccionSubmit(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("texto_clinico")

	data := viewData{Text: text}
	if text != "" {
		label, err := h.classifier.Classify(r.Context(), text)
		if err != nil {
			h.logger.WithField("error", err).Warn("classification unavailable")
			data.Result = msgModelUnavailable
		} else {
			data.Result = label
		}
	}
	h.render(w, "hacer_prediccion", data)
}

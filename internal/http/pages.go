package httpx

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/service/registration"
)

//go:embed templates/*.html
var pageFS embed.FS

var resultPage = template.Must(template.ParseFS(pageFS, "templates/result.html"))

type pageView struct {
	AppName   string
	Success   bool
	Title     string
	Message   string
	LinkURL   string
	LinkLabel string
}

type pageRenderer struct {
	appName  string
	loginURL string
}

func (p pageRenderer) renderSuccess(w http.ResponseWriter, result *domain.ProvisionResult) {
	message := "Your account has been created. You can now sign in."
	if result != nil && result.Email != "" {
		message = "Your account for " + result.Email + " has been created. You can now sign in."
	}
	p.render(w, http.StatusOK, pageView{
		Success:   true,
		Title:     "Account confirmed",
		Message:   message,
		LinkURL:   p.loginURL,
		LinkLabel: "Go to login",
	})
}

// renderError shows one generic failure page. Only token problems get a distinct hint.
func (p pageRenderer) renderError(w http.ResponseWriter, err error) {
	view := pageView{
		Title:   "Account creation failed",
		Message: "We could not complete your account setup. Please try again later or contact support.",
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registration.ErrTokenMissing), errors.Is(err, registration.ErrTokenInvalid):
		status = http.StatusBadRequest
		view.Title = "Invalid link"
		view.Message = "This confirmation link is invalid or has already been used."
	case errors.Is(err, registration.ErrTokenExpired):
		status = http.StatusGone
		view.Title = "Link expired"
		view.Message = "This confirmation link has expired. Please register again."
	}
	p.render(w, status, view)
}

func (p pageRenderer) render(w http.ResponseWriter, status int, view pageView) {
	view.AppName = p.appName
	if view.AppName == "" {
		view.AppName = "Customer Portal"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = resultPage.Execute(w, view)
}

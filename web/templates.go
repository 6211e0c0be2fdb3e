package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"welcome",
	"login",
	"register",
	"verify_code",
	"forgot_password",
	"verify_reset_code",
	"reset_password",
	"home",
	"historia_clinica",
	"hacer_prediccion",
}

// viewData carries everything any page can render. Unused fields stay
// zero for pages that do not need them.
type viewData struct {
	Error     string
	Email     string
	FirstName string
	LastName  string
	Text      string
	Result    string
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (h *Handler) render(w http.ResponseWriter, page string, data viewData) {
	t, ok := h.pages[page]
	if !ok {
		h.logger.WithField("page", page).Error("unknown template")
		http.Error(w, "error interno del servidor", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		h.logger.WithFields(logrus.Fields{"page": page, "error": err}).Error("render failed")
	}
}

package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"spendview/internal/core"
	"spendview/web"
)

// templates holds one parsed tree per page. Each page is the shared
// layout plus partials plus its own content block, cloned so content
// definitions cannot collide.
type templates struct {
	pages map[string]*template.Template
}

var pageFiles = []string{
	"login.html",
	"signup.html",
	"dashboard.html",
	"expenses.html",
	"expense_form.html",
	"analytics.html",
	"settings.html",
	"error.html",
}

func parseTemplates() (*templates, error) {
	base, err := template.New("layout").Funcs(templateFuncs()).
		ParseFS(web.TemplatesFS, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout: %w", err)
		}
		t, err := clone.ParseFS(web.TemplatesFS, "templates/pages/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return &templates{pages: pages}, nil
}

func (t *templates) render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("unknown page template %q", page)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":   formatDollars,
		"reltime": relativeTime,
		"title":   func(c core.Category) string { return c.Title() },
		"date":    func(t time.Time) string { return t.Format("Jan 2, 2006") },
	}
}

func formatDollars(m core.Money) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := "$" + strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-" + s
	}
	return s
}

// relativeTime renders a short "how long ago" label for expense rows.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		n := int(d.Minutes())
		return fmt.Sprintf("%d minute%s ago", n, plural(n))
	case d < 24*time.Hour:
		n := int(d.Hours())
		return fmt.Sprintf("%d hour%s ago", n, plural(n))
	case d < 30*24*time.Hour:
		n := int(d.Hours() / 24)
		return fmt.Sprintf("%d day%s ago", n, plural(n))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// chartJSON marshals chart data for a JSON script tag. Marshal errors
// degrade to an empty payload; the chart just stays blank.
func chartJSON(v any) template.JS {
	buf, err := json.Marshal(v)
	if err != nil {
		return template.JS("null")
	}
	return template.JS(buf)
}

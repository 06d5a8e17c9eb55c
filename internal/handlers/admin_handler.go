package handlers

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/services"
)

// MenuItem is one entry of the admin navigation
type MenuItem struct {
	Title      string
	MenuTitle  string
	Path       string
	Capability string
}

// AdminMenu lists the pages registered under /admin/
var AdminMenu = []MenuItem{
	{
		Title:      "View Relationships",
		MenuTitle:  "Relationships",
		Path:       "/admin/relationships",
		Capability: "manage_options",
	},
}

var adminTemplates = template.Must(template.New("admin").Parse(`
{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{template "menu" .}}
{{if .Report}}{{template "report" .}}{{end}}
</body>
</html>{{end}}

{{define "menu"}}<nav><ul>
{{range .Menu}}<li><a href="{{.Path}}">{{.MenuTitle}}</a></li>
{{end}}</ul></nav>{{end}}

{{define "report"}}<div class="wrap"><h1>Company-Heading Relationships</h1>
{{if .Rows}}<table class="widefat fixed" cellspacing="0">
<thead>
<tr>
<th>Company Name</th>
<th>Heading Name</th>
<th>Company Thomas ID</th>
<th>Heading Thomas ID</th>
<th>Ranking</th>
</tr>
</thead>
<tbody>
{{range .Rows}}<tr>
<td>{{if .CompanyEditURL}}<a href="{{.CompanyEditURL}}">{{.CompanyName}}</a>{{else}}{{.CompanyName}}{{end}}</td>
<td>{{if .HeadingEditURL}}<a href="{{.HeadingEditURL}}">{{.HeadingName}}</a>{{else}}{{.HeadingName}}{{end}}</td>
<td>{{.CompanyID}}</td>
<td>{{.HeadingID}}</td>
<td>{{.Ranking}}</td>
</tr>
{{end}}</tbody>
</table>
{{else}}<p>No relationships found.</p>
{{end}}</div>{{end}}
`))

type adminPage struct {
	Title  string
	Menu   []MenuItem
	Report bool
	Rows   []*services.ReportRow
}

// AdminHandler renders the admin pages
type AdminHandler struct {
	service services.RelationshipServiceInterface
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service services.RelationshipServiceInterface, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{service: service, logger: logger}
}

// Menu renders the admin navigation
func (h *AdminHandler) Menu(c echo.Context) error {
	return h.render(c, adminPage{Title: "Directory Admin", Menu: AdminMenu})
}

// Relationships renders every stored relationship in storage order
func (h *AdminHandler) Relationships(c echo.Context) error {
	rows, err := h.service.Report(c.Request().Context())
	if err != nil {
		return NewAPIError(http.StatusInternalServerError, CodeInternalError, "Failed to load relationships").withCause(err)
	}

	return h.render(c, adminPage{
		Title:  "View Relationships",
		Menu:   AdminMenu,
		Report: true,
		Rows:   rows,
	})
}

func (h *AdminHandler) render(c echo.Context, page adminPage) error {
	var buf bytes.Buffer
	if err := adminTemplates.ExecuteTemplate(&buf, "layout", page); err != nil {
		logging.WithContext(c.Request().Context(), h.logger).Error("failed to render admin page", zap.Error(err))
		return NewAPIError(http.StatusInternalServerError, CodeInternalError, "Failed to render page").withCause(err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

package handlers

import (
	"bytes"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/services"
)

// Map widget defaults
const (
	DefaultMapZoom   = 15
	DefaultMapWidth  = 600
	DefaultMapHeight = 400
)

var mapTemplate = template.Must(template.New("map").Parse(
	`<div id="{{.ElementID}}" style="width: {{.Width}}px; height: {{.Height}}px;"></div>
{{if .APIKey}}<script src="https://maps.googleapis.com/maps/api/js?key={{.APIKey}}"></script>
{{end}}<script>
    function initMap{{.FuncSuffix}}() {
        var location = {lat: {{.Lat}}, lng: {{.Lng}}};
        var map = new google.maps.Map(document.getElementById({{.ElementID}}), {
            zoom: {{.Zoom}},
            center: location
        });
        var marker = new google.maps.Marker({
            position: location,
            map: map
        });
    }
    initMap{{.FuncSuffix}}();
</script>
`))

// MapOptions is the resolved configuration of one map widget
type MapOptions struct {
	ElementID  string
	FuncSuffix template.JS
	APIKey     string
	Lat        float64
	Lng        float64
	Zoom       int
	Width      int
	Height     int
}

// MapHandler renders the company map widget and location feature
type MapHandler struct {
	records services.RecordServiceInterface
	apiKey  string
}

// NewMapHandler creates a new MapHandler
func NewMapHandler(records services.RecordServiceInterface, apiKey string) *MapHandler {
	return &MapHandler{records: records, apiKey: apiKey}
}

// Snippet renders an embeddable map centred on the company. Query values
// override the record's lat/long fields.
func (h *MapHandler) Snippet(c echo.Context) error {
	company, err := h.company(c)
	if err != nil {
		return err
	}

	point := companyPoint(company)
	opts := MapOptions{
		APIKey: h.apiKey,
		Lat:    floatParam(c, "lat", point.Lat()),
		Lng:    floatParam(c, "lng", point.Lon()),
		Zoom:   intParam(c, "zoom", DefaultMapZoom),
		Width:  intParam(c, "width", DefaultMapWidth),
		Height: intParam(c, "height", DefaultMapHeight),
	}
	opts.ElementID, opts.FuncSuffix = newMapID()

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, opts); err != nil {
		return NewAPIError(http.StatusInternalServerError, CodeInternalError, "Failed to render map").withCause(err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Location returns the company location as a GeoJSON feature
func (h *MapHandler) Location(c echo.Context) error {
	company, err := h.company(c)
	if err != nil {
		return err
	}

	feature := geojson.NewFeature(companyPoint(company))
	feature.ID = company.ID
	feature.Properties["company_id"] = company.StringField(entities.FieldCompanyID)
	feature.Properties["company_name"] = company.StringField(entities.FieldCompanyName)

	data, err := feature.MarshalJSON()
	if err != nil {
		return NewAPIError(http.StatusInternalServerError, CodeInternalError, "Failed to encode location").withCause(err)
	}
	return c.Blob(http.StatusOK, "application/geo+json", data)
}

func (h *MapHandler) company(c echo.Context) (*entities.Record, error) {
	id, err := recordID(c)
	if err != nil {
		return nil, err
	}

	rec, err := h.records.Get(c.Request().Context(), id)
	if err != nil {
		return nil, recordError(err)
	}
	if !rec.IsCompany() {
		return nil, NewAPIError(http.StatusNotFound, CodeNotFound, "Company not found")
	}
	return rec, nil
}

// companyPoint reads the lat/long fields; missing or invalid values are 0.
func companyPoint(rec *entities.Record) orb.Point {
	return orb.Point{finiteField(rec, entities.FieldLong), finiteField(rec, entities.FieldLat)}
}

func finiteField(rec *entities.Record, name string) float64 {
	v, ok := rec.FloatField(name)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func newMapID() (string, template.JS) {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "nichesite_map_" + suffix, template.JS(suffix)
}

func floatParam(c echo.Context, name string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.QueryParam(name)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func intParam(c echo.Context, name string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

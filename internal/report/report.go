// Package report renders the tour/stop dataset into an HTML document for the
// external print-and-share service. Generation of the final PDF happens
// outside this repository; the document string is the whole contract.
package report

import (
	"html/template"
	"strings"

	"github.com/triana-labs/tourwalk/backend/internal/tours"
)

const defaultTitle = "Tour Report"

const documentTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; padding: 24px;">
{{if .LogoURL}}<img src="{{.LogoURL}}" alt="logo" style="height: 64px;">{{end}}
<h1>{{.Title}}</h1>
{{range .Tours}}
<div style="margin-bottom: 30px; page-break-inside: avoid;">
  <h2 style="color: #2980b9; border-bottom: 1px solid #ccc;">{{.Title}}</h2>
  <p><em>{{if .Description}}{{.Description}}{{else}}No description{{end}}</em></p>
  <table border="1" width="100%" cellpadding="6" cellspacing="0" style="border-collapse: collapse; margin-top: 10px;">
    <tr style="background-color: #f2f2f2;">
      <th align="left" width="30%">Stop</th>
      <th align="left">Description</th>
    </tr>
{{if .Stops}}{{range .Stops}}    <tr>
      <td><strong>{{.Title}}</strong></td>
      <td>{{.Description}}</td>
    </tr>
{{end}}{{else}}    <tr><td colspan="2"><i>No stops registered</i></td></tr>
{{end}}  </table>
</div>
{{end}}
</body>
</html>
`

var parsedTemplate = template.Must(template.New("report").Parse(documentTemplate))

// BuilderConfig customizes the rendered document.
type BuilderConfig struct {
	Title   string
	LogoURL string
}

// Builder renders report documents.
type Builder struct {
	title   string
	logoURL string
}

// NewBuilder constructs a Builder, falling back to the default title.
func NewBuilder(cfg BuilderConfig) *Builder {
	title := strings.TrimSpace(cfg.Title)
	if title == "" {
		title = defaultTitle
	}
	return &Builder{title: title, logoURL: strings.TrimSpace(cfg.LogoURL)}
}

type tourSection struct {
	Title       string
	Description string
	Stops       []tours.Stop
}

type documentData struct {
	Title   string
	LogoURL string
	Tours   []tourSection
}

// Build renders one section per tour, each listing its stops in stop order,
// with a placeholder row for tours without stops. All user content is
// HTML-escaped by the template engine.
func (b *Builder) Build(dataset tours.ReportDataset) (string, error) {
	data := documentData{
		Title:   b.title,
		LogoURL: b.logoURL,
		Tours:   make([]tourSection, 0, len(dataset.Tours)),
	}
	for _, tour := range dataset.Tours {
		data.Tours = append(data.Tours, tourSection{
			Title:       tour.Title,
			Description: tour.Description,
			Stops:       dataset.Stops[tour.ID],
		})
	}

	var rendered strings.Builder
	if err := parsedTemplate.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

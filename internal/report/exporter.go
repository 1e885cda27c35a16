package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed "templates"
var templateFS embed.FS

type Exporter struct {
	OutputDir string
}

func NewExporter(outputDir string) *Exporter {
	return &Exporter{OutputDir: outputDir}
}

func (e *Exporter) ExportJSON(ledger *capacity.Ledger, filename string) error {
	payload := struct {
		*capacity.Ledger
		Global capacity.Summary       `json:"global"`
		Teams  []capacity.TeamSummary `json:"teams"`
	}{
		Ledger: ledger,
		Global: ledger.Global(),
		Teams:  ledger.ByTeam(),
	}

	data, err := json.MarshalIndent(payload, "", "\t")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(e.OutputDir, filename), data, 0644)
}

func (e *Exporter) ExportHTML(ledger *capacity.Ledger, filename, author string) error {
	title := cases.Title(language.English)
	funcMap := template.FuncMap{
		"title":   title.String,
		"date":    formatDate,
		"percent": formatPercent,
		"notes":   entryNotes,
		"kind": func(k capacity.AnomalyKind) string {
			return title.String(strings.ReplaceAll(string(k), "_", " "))
		},
	}
	tmpl, err := template.New("ledger.tmpl").Funcs(funcMap).ParseFS(templateFS, "templates/ledger.tmpl")
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	outputPath := filepath.Join(e.OutputDir, filename)
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create HTML file: %w", err)
	}
	defer f.Close()

	data := map[string]any{
		"Date":        time.Now().Format("2006-01-02 15:04:05"),
		"Ledger":      ledger,
		"Global":      ledger.Global(),
		"Teams":       ledger.ByTeam(),
		"SubmittedBy": author,
	}

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}

	return nil
}

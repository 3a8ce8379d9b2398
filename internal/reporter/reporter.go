package reporter

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/owenrumney/go-sarif/v2/sarif"
	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/scanner"
)

const (
	toolName           = "DrupalSecurity"
	toolInformationURI = "https://github.com/drupal-spider/DrupalSecurity"
	checkstyleVersion  = "3.7.2"
)

// Reporter generates scan reports
type Reporter struct {
	config *config.Config
	logger *zap.Logger
	out    io.Writer
	meta   map[string]types.Meta
}

// New creates a new reporter instance writing to stdout unless the config
// names an output file
func New(cfg *config.Config, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		config: cfg,
		logger: logger,
		out:    os.Stdout,
		meta:   make(map[string]types.Meta),
	}
}

// WithWriter redirects stdout output
func (r *Reporter) WithWriter(w io.Writer) *Reporter {
	r.out = w
	return r
}

// WithRules attaches rule metadata used for SARIF rule descriptors
func (r *Reporter) WithRules(rules []types.Rule) *Reporter {
	for _, rule := range rules {
		m := rule.Meta()
		r.meta[m.ID] = m
	}
	return r
}

// Generate generates a report from scan results
func (r *Reporter) Generate(results *scanner.ScanResult) error {
	output, err := r.Render(results)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if r.config.OutputFile != "" {
		if err := os.WriteFile(r.config.OutputFile, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write report to file: %w", err)
		}
		r.logger.Info("Report written", zap.String("file", r.config.OutputFile))
		return nil
	}

	_, err = io.WriteString(r.out, output)
	return err
}

// Render formats results in the configured format
func (r *Reporter) Render(results *scanner.ScanResult) (string, error) {
	switch strings.ToLower(r.config.Format) {
	case "json":
		return r.generateJSON(results)
	case "sarif":
		return r.generateSARIF(results)
	case "checkstyle":
		return r.generateCheckstyle(results)
	case "text", "":
		return r.generateText(results), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", r.config.Format)
	}
}

// generateText generates a human-readable text report
func (r *Reporter) generateText(results *scanner.ScanResult) string {
	var sb strings.Builder

	sb.WriteString("=== DrupalSecurity Report ===\n\n")
	sb.WriteString(fmt.Sprintf("Scan completed at: %s\n", results.EndTime.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Scan duration: %s\n", results.Duration.String()))
	if stats := results.Statistics; stats != nil {
		sb.WriteString(fmt.Sprintf("Files scanned: %d\n", stats.FilesScanned))
		sb.WriteString(fmt.Sprintf("Files skipped: %d\n", stats.FilesSkipped))
		sb.WriteString(fmt.Sprintf("Lines scanned: %d\n", stats.LinesScanned))
	}
	sb.WriteString(fmt.Sprintf("Total findings: %d\n\n", len(results.Diagnostics)))

	if stats := results.Statistics; stats != nil && len(stats.BySeverity) > 0 {
		sb.WriteString("Findings by Severity:\n")
		for _, severity := range []diag.Severity{diag.Error, diag.Warning} {
			if count := stats.BySeverity[severity.String()]; count > 0 {
				sb.WriteString(fmt.Sprintf("  %s: %d\n", strings.ToUpper(severity.String()), count))
			}
		}
		sb.WriteString("\n")
	}

	filtered := r.filterBySeverity(results.Diagnostics)
	if len(filtered) == 0 {
		sb.WriteString("No findings match the specified severity criteria.\n")
		return sb.String()
	}

	byFile := groupByFile(filtered)
	for _, file := range sortedKeys(byFile) {
		diagnostics := byFile[file]
		sb.WriteString(fmt.Sprintf("FILE: %s\n", file))
		sb.WriteString(strings.Repeat("-", 80) + "\n")
		for _, d := range diagnostics {
			sb.WriteString(fmt.Sprintf(" %4d | %-7s | %s\n", d.Line, strings.ToUpper(d.Severity.String()), d.Message))
			sb.WriteString(fmt.Sprintf("      |         | (%s)\n", d.Source()))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// generateJSON generates a JSON report
func (r *Reporter) generateJSON(results *scanner.ScanResult) (string, error) {
	filteredResults := *results
	filteredResults.Diagnostics = r.filterBySeverity(results.Diagnostics)
	if filteredResults.Diagnostics == nil {
		filteredResults.Diagnostics = []diag.Diagnostic{}
	}

	data, err := json.MarshalIndent(filteredResults, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(data), nil
}

// generateSARIF generates a SARIF 2.1.0 report
func (r *Reporter) generateSARIF(results *scanner.ScanResult) (string, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return "", fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolInformationURI)
	seen := make(map[string]bool)
	for _, d := range r.filterBySeverity(results.Diagnostics) {
		ruleID := d.Source()
		level := severityToSARIFLevel(d.Severity)
		if !seen[ruleID] {
			seen[ruleID] = true
			description := d.Message
			if m, ok := r.meta[d.Rule]; ok && m.Description != "" {
				description = m.Description
			}
			run.AddRule(ruleID).
				WithDescription(description).
				WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(level))
		}

		region := sarif.NewRegion().WithStartLine(max(d.Line, 1))
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(d.File)).
				WithRegion(region),
		)

		run.AddResult(sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(d.Message)).
			WithLevel(level).
			WithLocations([]*sarif.Location{location}))
	}
	report.AddRun(run)

	var buf bytes.Buffer
	if err := report.PrettyWrite(&buf); err != nil {
		return "", fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	return buf.String(), nil
}

type checkstyleReport struct {
	XMLName xml.Name         `xml:"checkstyle"`
	Version string           `xml:"version,attr"`
	Files   []checkstyleFile `xml:"file"`
}

type checkstyleFile struct {
	Name   string            `xml:"name,attr"`
	Errors []checkstyleError `xml:"error"`
}

type checkstyleError struct {
	Line     int    `xml:"line,attr"`
	Column   int    `xml:"column,attr"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:"message,attr"`
	Source   string `xml:"source,attr"`
}

// generateCheckstyle generates a checkstyle XML report, the format code
// sniffer hosts emit natively
func (r *Reporter) generateCheckstyle(results *scanner.ScanResult) (string, error) {
	report := checkstyleReport{Version: checkstyleVersion}
	byFile := groupByFile(r.filterBySeverity(results.Diagnostics))
	for _, file := range sortedKeys(byFile) {
		cf := checkstyleFile{Name: file}
		for _, d := range byFile[file] {
			cf.Errors = append(cf.Errors, checkstyleError{
				Line:     d.Line,
				Column:   max(d.Column, 1),
				Severity: d.Severity.String(),
				Message:  d.Message,
				Source:   d.Source(),
			})
		}
		report.Files = append(report.Files, cf)
	}

	data, err := xml.MarshalIndent(report, "", " ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkstyle: %w", err)
	}
	return xml.Header + string(data) + "\n", nil
}

// severityToSARIFLevel converts severity to SARIF level
func severityToSARIFLevel(severity diag.Severity) string {
	switch severity {
	case diag.Error:
		return "error"
	default:
		return "warning"
	}
}

// filterBySeverity filters diagnostics by the configured minimum severity
func (r *Reporter) filterBySeverity(diagnostics []diag.Diagnostic) []diag.Diagnostic {
	minSeverity := config.ParseSeverity(r.config.Severity)
	var filtered []diag.Diagnostic
	for _, d := range diagnostics {
		if d.Severity >= minSeverity {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

func groupByFile(diagnostics []diag.Diagnostic) map[string][]diag.Diagnostic {
	byFile := make(map[string][]diag.Diagnostic)
	for _, d := range diagnostics {
		byFile[d.File] = append(byFile[d.File], d)
	}
	return byFile
}

func sortedKeys(m map[string][]diag.Diagnostic) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

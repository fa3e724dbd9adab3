// package formatter renders timelines, publish results and drafts as text, Markdown, CSV, JSON or YAML
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists every supported [Format].
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON, FormatYAML}

// ParseFormat accepts a format name or a common alias ("md", "yml", "txt"). Empty input means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Timeline renders entries in the requested format.
func Timeline(entries []models.TimelineEntry, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return TimelineToText(entries)
	case FormatMarkdown:
		return TimelineToMarkdown(entries)
	case FormatCSV:
		return TimelineToCSV(entries)
	case FormatJSON:
		return ToJSON(entries, true)
	case FormatYAML:
		return ToYAML(entries)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// TimelineToCSV writes one row per entry with columns: Title, Platforms, Date, URL, Status, Views, Reactions, Comments, Draft
func TimelineToCSV(entries []models.TimelineEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Title", "Platforms", "Date", "URL", "Status", "Views", "Reactions", "Comments", "Draft"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.Title,
			strings.Join(e.PlatformLabels, ";"),
			dateString(e.MostRecent),
			e.URL,
			e.Status,
			strconv.Itoa(e.Views),
			strconv.Itoa(e.Reactions),
			strconv.Itoa(e.Comments),
			e.OriginDraftID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// TimelineToMarkdown renders entries as a Markdown table, linking titles that have a URL.
func TimelineToMarkdown(entries []models.TimelineEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Activity\n\n")
	if len(entries) == 0 {
		buf.WriteString("_No activity yet._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Title | Platforms | Date | Views | Reactions | Comments |\n")
	buf.WriteString("| --- | --- | --- | ---: | ---: | ---: |\n")
	for _, e := range entries {
		title := escapeCell(e.Title)
		if e.URL != "" {
			title = fmt.Sprintf("[%s](%s)", title, e.URL)
		}
		fmt.Fprintf(&buf, "| %s | %s | %s | %d | %d | %d |\n",
			title,
			escapeCell(strings.Join(e.PlatformLabels, ", ")),
			dateString(e.MostRecent),
			e.Views, e.Reactions, e.Comments,
		)
	}
	return buf.Bytes(), nil
}

// TimelineToText renders entries as a numbered plain-text list.
func TimelineToText(entries []models.TimelineEntry) ([]byte, error) {
	var buf bytes.Buffer

	if len(entries) == 0 {
		buf.WriteString("No activity yet.\n")
		return buf.Bytes(), nil
	}

	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, e.Title)
		fmt.Fprintf(&buf, "   %s · %s\n", strings.Join(e.PlatformLabels, ", "), dateString(e.MostRecent))
		if e.Views+e.Reactions+e.Comments > 0 {
			fmt.Fprintf(&buf, "   %d views · %d reactions · %d comments\n", e.Views, e.Reactions, e.Comments)
		}
		if e.URL != "" {
			fmt.Fprintf(&buf, "   %s\n", e.URL)
		}
		if e.HasOrigin() {
			fmt.Fprintf(&buf, "   draft: %s\n", e.OriginDraftID)
		}
	}
	return buf.Bytes(), nil
}

// BatchToText lists succeeded and failed targets, one per line, using label to name platforms.
func BatchToText(r models.PublishBatchResult, label func(models.PlatformID) string) []byte {
	if label == nil {
		label = func(id models.PlatformID) string { return string(id) }
	}

	var buf bytes.Buffer
	for _, id := range r.Succeeded {
		fmt.Fprintf(&buf, "  ✓ %s\n", label(id))
	}
	for _, f := range r.Failed {
		fmt.Fprintf(&buf, "  ✗ %s: %s\n", label(f.Target), f.Reason)
	}
	return buf.Bytes()
}

// JobsToText renders publish history newest first, as returned by the repository.
func JobsToText(jobs []*models.PublishJob) []byte {
	var buf bytes.Buffer
	if len(jobs) == 0 {
		buf.WriteString("No publish jobs recorded.\n")
		return buf.Bytes()
	}
	for _, job := range jobs {
		fmt.Fprintf(&buf, "%s  %s  %q  %d ok / %d failed\n",
			job.StartedAt.Local().Format("2006-01-02 15:04"),
			shortID(job.ID),
			job.Title,
			len(job.Result.Succeeded),
			len(job.Result.Failed),
		)
	}
	return buf.Bytes()
}

// DraftToMarkdown renders a draft snapshot as a Markdown document with YAML front matter.
func DraftToMarkdown(id string, snap models.DraftSnapshot) ([]byte, error) {
	front := struct {
		ID      string   `yaml:"id"`
		Title   string   `yaml:"title"`
		Cover   string   `yaml:"cover_image,omitempty"`
		Tags    []string `yaml:"tags,omitempty"`
		Targets []string `yaml:"publish_targets,omitempty"`
	}{id, snap.Title, snap.CoverImageURL, snap.Tags, snap.Targets.Strings()}

	meta, err := ToYAML(front)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(meta)
	buf.WriteString("---\n\n")
	buf.WriteString(snap.Body)
	if !strings.HasSuffix(snap.Body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ToJSON encodes v, indented when pretty is set.
func ToJSON(v any, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ToYAML encodes v with two-space indentation.
func ToYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteExport writes data to path, defaulting the filename to activity.{ext} for the format.
func WriteExport(data []byte, f Format, path string) (string, error) {
	if path == "" {
		path = "activity." + Extension(f)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Extension returns the conventional file extension for f.
func Extension(f Format) string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

func dateString(ts models.Timestamp) string {
	t, ok := ts.Get()
	if !ok {
		return "unknown"
	}
	return t.Format("2006-01-02")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

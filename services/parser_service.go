package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/oyounis19/beyond-rag/internal/crawler"
	"github.com/oyounis19/beyond-rag/utils"
)

var (
	manyNewlines = regexp.MustCompile(`\n{3,}`)
	manySpaces   = regexp.MustCompile(`[ \t]{2,}`)
)

// ParserService turns uploaded bytes or a URL into plain text ready for
// chunking. One entry point per supported extension; unsupported extensions
// are rejected before upload, so Parse treats them as internal errors.
type ParserService struct {
	fetcher *crawler.Fetcher
}

func NewParserService(fetcher *crawler.Fetcher) *ParserService {
	return &ParserService{fetcher: fetcher}
}

// Parse extracts text from raw file bytes based on extension.
func (s *ParserService) Parse(ctx context.Context, extension string, data []byte) (string, error) {
	switch strings.ToLower(extension) {
	case "txt", "md":
		return parsePlainText(data), nil
	case "pdf":
		return parsePDF(data)
	case "xlsx", "xls":
		return parseExcel(data)
	case "csv":
		return parseCSV(data)
	default:
		return "", utils.NewError(utils.KindUnsupported,
			fmt.Sprintf("unsupported file type: %s", extension))
	}
}

// ParseURL fetches a page and returns its visible text.
func (s *ParserService) ParseURL(ctx context.Context, pageURL string) (string, error) {
	return s.fetcher.Fetch(ctx, pageURL)
}

// parsePlainText decodes as UTF-8, replacing invalid sequences rather than
// failing the upload.
func parsePlainText(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(data), "�"))
}

func parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", utils.WrapError(utils.KindParse, "open pdf", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", utils.WrapError(utils.KindParse, fmt.Sprintf("extract pdf page %d", i), err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return CleanExtractedText(sb.String()), nil
}

// CleanExtractedText normalizes PDF extraction artifacts: runs of blank
// lines collapse to one, intra-line whitespace runs collapse to a single
// space, and lines that do not end a sentence are merged with the next.
func CleanExtractedText(text string) string {
	text = manyNewlines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(manySpaces.ReplaceAllString(line, " "))
	}

	var sb strings.Builder
	for i, line := range lines {
		if line == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(line)

		last := line[len(line)-1]
		if last == '.' || last == '!' || last == '?' || i == len(lines)-1 {
			sb.WriteString("\n")
		} else {
			// Mid-sentence line break from column layout; join with a space.
			sb.WriteString(" ")
		}
	}

	out := manyNewlines.ReplaceAllString(sb.String(), "\n\n")
	return strings.TrimSpace(out)
}

func parseExcel(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", utils.WrapError(utils.KindParse, "open spreadsheet", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", utils.WrapError(utils.KindParse, fmt.Sprintf("read sheet %s", sheet), err)
		}

		table := normalizeTable(rows)
		if len(table) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Sheet: " + sheet + "\n")
		writeTSV(&sb, table)
	}
	return strings.TrimSpace(sb.String()), nil
}

func parseCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return "", utils.WrapError(utils.KindParse, "read csv", err)
	}

	table := normalizeTable(rows)
	var sb strings.Builder
	writeTSV(&sb, table)
	return strings.TrimSpace(sb.String()), nil
}

// normalizeTable drops fully-empty rows and columns, rounds numeric cells
// to two decimals, and substitutes "" for missing values. The first kept
// row is treated as a header: a column counts as empty when no data row
// below the header fills it.
func normalizeTable(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil
	}

	var kept [][]string
	for _, row := range rows {
		padded := make([]string, width)
		empty := true
		for i := 0; i < width; i++ {
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			if cell != "" {
				empty = false
				if v, err := strconv.ParseFloat(cell, 64); err == nil && strings.ContainsAny(cell, ".eE") {
					cell = strconv.FormatFloat(round2(v), 'f', 2, 64)
				}
			}
			padded[i] = cell
		}
		if !empty {
			kept = append(kept, padded)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	colUsed := make([]bool, width)
	dataRows := kept
	if len(kept) > 1 {
		dataRows = kept[1:]
	}
	for _, row := range dataRows {
		for i, cell := range row {
			if cell != "" {
				colUsed[i] = true
			}
		}
	}

	var out [][]string
	for _, row := range kept {
		var cells []string
		for i, used := range colUsed {
			if used {
				cells = append(cells, row[i])
			}
		}
		out = append(out, cells)
	}
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+copysignHalf(v))) / 100
}

func copysignHalf(v float64) float64 {
	if v < 0 {
		return -0.5
	}
	return 0.5
}

func writeTSV(sb *strings.Builder, table [][]string) {
	for _, row := range table {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("\t")
			}
			if cell == "" {
				sb.WriteString(`""`)
			} else {
				sb.WriteString(cell)
			}
		}
		sb.WriteString("\n")
	}
}

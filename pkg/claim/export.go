package claim

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"docentgo/pkg/model"
)

var csvHeader = []string{"timestamp", "email", "score", "totalQuestions", "response"}

// ExportFilename names a download taken at t.
func ExportFilename(t time.Time) string {
	return "submissions_" + t.UTC().Format("2006-01-02-15-04-05") + ".csv"
}

// WriteCSV writes the log with every field quoted. The response column holds
// the JSON text of the recipient service's answer.
func WriteCSV(w io.Writer, subs []model.Submission) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, csvHeader)
	for _, s := range subs {
		bw.WriteByte('\n')
		writeRow(bw, []string{
			s.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			s.Email,
			strconv.Itoa(s.Score),
			strconv.Itoa(s.TotalQuestions),
			responseText(s.Response),
		})
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
}

// responseText renders a stored response as compact JSON, or "" when absent.
func responseText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return `""`
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		b, _ := json.Marshal(string(raw))
		return string(b)
	}
	return buf.String()
}

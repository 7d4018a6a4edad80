package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/dl-alexandre/drivepush/internal/auth"
	pushsync "github.com/dl-alexandre/drivepush/internal/sync"
	"github.com/dl-alexandre/drivepush/internal/types"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

// OutputWriter handles CLI output formatting
type OutputWriter struct {
	out    io.Writer
	errOut io.Writer
	quiet  bool
}

// NewOutputWriter creates a new output writer
func NewOutputWriter(out, errOut io.Writer, quiet bool) *OutputWriter {
	return &OutputWriter{out: out, errOut: errOut, quiet: quiet}
}

// Progress returns the writer that receives per-file progress lines.
func (w *OutputWriter) Progress() io.Writer {
	if w.quiet {
		return io.Discard
	}
	return w.out
}

// Log writes a line to stdout unless quiet
func (w *OutputWriter) Log(format string, args ...interface{}) {
	if !w.quiet {
		fmt.Fprintf(w.out, format+"\n", args...)
	}
}

// WriteTable renders data when it can be shown as a table
func (w *OutputWriter) WriteTable(data interface{}) error {
	if w.quiet {
		return nil
	}
	if renderable, ok := data.(types.TableRenderable); ok {
		return w.renderTable(renderable.AsTableRenderer())
	}
	if renderer, ok := data.(types.TableRenderer); ok {
		return w.renderTable(renderer)
	}
	return fmt.Errorf("cannot render %T as a table", data)
}

func (w *OutputWriter) renderTable(renderer types.TableRenderer) error {
	rows := renderer.Rows()
	if len(rows) == 0 {
		fmt.Fprintln(w.out, renderer.EmptyMessage())
		return nil
	}

	table := tablewriter.NewWriter(w.out)
	table.SetHeader(renderer.Headers())
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		table.Append(row)
	}

	table.Render()
	return nil
}

// WriteError prints err to stderr along with any suggested action. Errors
// are printed even when quiet.
func (w *OutputWriter) WriteError(err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		fmt.Fprintf(w.errOut, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w.errOut, "Error: %s\n", appErr.CLIError.Message)
	if action, ok := appErr.CLIError.Context["suggestedAction"].(string); ok && action != "" {
		fmt.Fprintf(w.errOut, "Hint: %s\n", action)
	}
	if cause := errors.Unwrap(appErr); cause != nil && cause.Error() != appErr.CLIError.Message {
		fmt.Fprintf(w.errOut, "Cause: %v\n", cause)
	}
}

type summaryTable struct {
	summary pushsync.Summary
}

func (t summaryTable) Headers() []string {
	return []string{"Push summary", ""}
}

func (t summaryTable) Rows() [][]string {
	s := t.summary
	rows := [][]string{
		{"Local folder", s.LocalRoot},
		{"Drive folder", fmt.Sprintf("%s (%s)", s.RemoteFolder, s.RemoteFolderID)},
		{"Directories", strconv.Itoa(s.Directories)},
		{"Folders created", strconv.Itoa(s.FoldersCreated)},
		{"Uploaded", strconv.Itoa(s.Uploaded)},
		{"Updated", strconv.Itoa(s.Updated)},
		{"Up to date", strconv.Itoa(s.Skipped)},
		{"Excluded", strconv.Itoa(s.Excluded)},
		{"Transferred", humanize.IBytes(uint64(s.Bytes))},
		{"Elapsed", s.Duration.Round(time.Millisecond).String()},
	}
	if s.DryRun {
		rows = append(rows, []string{"Mode", "dry run, nothing was written"})
	}
	return rows
}

func (t summaryTable) EmptyMessage() string {
	return "Nothing to push."
}

type statusTable struct {
	status auth.Status
}

func (t statusTable) Headers() []string {
	return []string{"Credential", ""}
}

func (t statusTable) Rows() [][]string {
	st := t.status
	rows := [][]string{
		{"Backend", st.Backend},
		{"Location", st.Key},
		{"Stored", strconv.FormatBool(st.Present)},
	}
	if !st.Present {
		return rows
	}
	expiry := "never"
	if !st.Expiry.IsZero() {
		expiry = fmt.Sprintf("%s (%s)", st.Expiry.Format(time.RFC3339), humanize.Time(st.Expiry))
	}
	return append(rows,
		[]string{"Access token valid", strconv.FormatBool(st.Valid)},
		[]string{"Refresh token", strconv.FormatBool(st.HasRefreshToken)},
		[]string{"Expires", expiry},
	)
}

func (t statusTable) EmptyMessage() string {
	return "No credential stored."
}

package console

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/simp-lee/userlist/internal/controller"
	"github.com/simp-lee/userlist/internal/domain"
)

var columns = []string{"ID", "USERNAME", "EMAIL", "NAME", "LASTNAME", "STATUS", "AGE"}

const statusColumn = 5

// Renderer draws list snapshots and messages to a writer. Colors are only
// emitted when the writer is a color-capable terminal.
type Renderer struct {
	out io.Writer

	header   lipgloss.Style
	cell     lipgloss.Style
	border   lipgloss.Style
	active   lipgloss.Style
	inactive lipgloss.Style
	muted    lipgloss.Style
	errText  lipgloss.Style
}

// NewRenderer creates a Renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	r := lipgloss.NewRenderer(out)
	return &Renderer{
		out:      out,
		header:   r.NewStyle().Bold(true).Padding(0, 1),
		cell:     r.NewStyle().Padding(0, 1),
		border:   r.NewStyle().Foreground(lipgloss.Color("8")),
		active:   r.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("2")),
		inactive: r.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("1")),
		muted:    r.NewStyle().Faint(true),
		errText:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// State writes the snapshot: a summary line, the page as a table and the
// list error when the last fetch failed.
func (r *Renderer) State(s controller.State) {
	fmt.Fprintln(r.out, r.summary(s))

	if len(s.Records) == 0 {
		fmt.Fprintln(r.out, r.muted.Render("no users"))
	} else {
		fmt.Fprintln(r.out, r.table(s.Records))
	}

	if s.Error != "" {
		r.Error("list", s.Error)
	}
}

// Loading writes the summary of a snapshot whose fetch is still running.
func (r *Renderer) Loading(s controller.State) {
	fmt.Fprintln(r.out, r.muted.Render(r.summary(s)))
}

func (r *Renderer) summary(s controller.State) string {
	status := "all"
	if s.Filters.Status != "" {
		status = string(s.Filters.Status)
	}
	line := fmt.Sprintf("page %d/%d, %d total, %d per page | status=%s",
		s.Pagination.Page(), max(s.TotalPages(), 1), s.Total, s.Pagination.Limit, status)
	if s.Filters.Search != "" {
		line += fmt.Sprintf(" search=%q", s.Filters.Search)
	}
	if s.Loading {
		line += " | loading..."
	}
	return line
}

func (r *Renderer) table(users []domain.User) string {
	rows := make([][]string, len(users))
	for i, u := range users {
		rows[i] = []string{
			u.ID.String(),
			u.Username,
			u.Email,
			u.Name,
			u.Lastname,
			string(u.Status),
			strconv.Itoa(u.Age),
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.border).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return r.header
			case row < 0 || row >= len(rows) || col != statusColumn:
				return r.cell
			case rows[row][col] == string(domain.StatusActive):
				return r.active
			default:
				return r.inactive
			}
		}).
		String()
}

// Error writes an inline failure for op.
func (r *Renderer) Error(op, msg string) {
	fmt.Fprintln(r.out, r.errText.Render(op+" failed: "+msg))
}

// Info writes a plain message.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

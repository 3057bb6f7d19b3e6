// Package console is a line-oriented terminal front end for the list
// controller. Each command maps to one controller intent and the resulting
// snapshot is printed as a table.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/simp-lee/userlist/internal/controller"
	"github.com/simp-lee/userlist/internal/domain"
)

// ListController is the part of *controller.Controller the session drives.
type ListController interface {
	State() controller.State
	Refresh(ctx context.Context) error
	SetFilters(ctx context.Context, patch controller.FilterPatch) error
	SetPagination(ctx context.Context, patch controller.PaginationPatch) error
	Create(ctx context.Context, fields domain.UserFields) (*domain.User, error)
	Update(ctx context.Context, id domain.ID, fields domain.UserFields) (*domain.User, error)
	Remove(ctx context.Context, id domain.ID) error
	Subscribe(fn func(controller.State)) (unsubscribe func())
}

var errQuit = errors.New("quit")

// Session reads commands from an input stream and applies them to a
// ListController.
type Session struct {
	ctrl    ListController
	view    *Renderer
	out     io.Writer
	logger  *slog.Logger
	prompt  string
	confirm bool

	in      *bufio.Scanner
	lines   chan string
	done    chan struct{}
	readErr error

	commands []command
	lookup   map[string]command

	mu      sync.Mutex
	loading bool
}

type command struct {
	names []string
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPrompt sets the prompt printed before each command. Defaults to "> ".
func WithPrompt(p string) Option {
	return func(s *Session) { s.prompt = p }
}

// WithoutConfirm makes rm delete without asking first.
func WithoutConfirm() Option {
	return func(s *Session) { s.confirm = false }
}

// NewSession creates a Session reading commands from in and writing to out.
func NewSession(ctrl ListController, in io.Reader, out io.Writer, opts ...Option) *Session {
	if ctrl == nil {
		panic("console.NewSession: controller must not be nil")
	}
	s := &Session{
		ctrl:    ctrl,
		view:    NewRenderer(out),
		out:     out,
		logger:  slog.Default(),
		prompt:  "> ",
		confirm: true,
		in:      bufio.NewScanner(in),
		lines:   make(chan string),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.commands = []command{
		{[]string{"refresh", "r"}, "refresh", "reload the current page", s.cmdRefresh},
		{[]string{"status"}, "status active|inactive|all", "filter by status", s.cmdStatus},
		{[]string{"search", "find"}, "search [text]", "filter by name or lastname; no text clears", s.cmdSearch},
		{[]string{"next", "n"}, "next", "go to the next page", s.cmdNext},
		{[]string{"prev", "p"}, "prev", "go to the previous page", s.cmdPrev},
		{[]string{"page"}, "page N", "go to page N", s.cmdPage},
		{[]string{"limit"}, "limit N", "show N users per page", s.cmdLimit},
		{[]string{"add"}, "add key=value ...", "create a user (keys: username email name lastname status age)", s.cmdAdd},
		{[]string{"edit"}, "edit ID key=value ...", "change fields of a user on the current page", s.cmdEdit},
		{[]string{"rm", "delete"}, "rm ID", "delete a user", s.cmdRemove},
		{[]string{"help", "?"}, "help", "show this help", s.cmdHelp},
		{[]string{"quit", "exit", "q"}, "quit", "leave", s.cmdQuit},
	}
	s.lookup = make(map[string]command)
	for _, c := range s.commands {
		for _, name := range c.names {
			s.lookup[name] = c
		}
	}
	return s
}

// Run loads the first page and then executes commands until quit, end of
// input or ctx is done. Only a canceled ctx or a read failure is returned as
// an error.
func (s *Session) Run(ctx context.Context) error {
	unsubscribe := s.ctrl.Subscribe(s.onState)
	defer unsubscribe()

	go s.read()
	defer close(s.done)

	s.afterList("refresh", s.ctrl.Refresh(ctx))

	for {
		if s.prompt != "" {
			fmt.Fprint(s.out, s.prompt)
		}
		line, err := s.readLine(ctx)
		if errors.Is(err, io.EOF) {
			return s.readErr
		}
		if err != nil {
			return err
		}

		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}

func (s *Session) read() {
	defer close(s.lines)
	for s.in.Scan() {
		select {
		case s.lines <- s.in.Text():
		case <-s.done:
			return
		}
	}
	s.readErr = s.in.Err()
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// exec runs one command line. Usage errors are returned; controller failures
// are printed.
func (s *Session) exec(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	name := strings.ToLower(args[0])
	cmd, ok := s.lookup[name]
	if !ok {
		return fmt.Errorf("unknown command %q, type help", args[0])
	}
	s.logger.DebugContext(ctx, "console command", slog.String("command", name))
	return cmd.run(ctx, args[1:])
}

// onState prints a progress line when a fetch starts. The finished page is
// printed by the command that caused it.
func (s *Session) onState(st controller.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Loading && !s.loading {
		s.view.Loading(st)
	}
	s.loading = st.Loading
}

// afterList prints the snapshot after a list intent. A failure already
// stored as the snapshot's error is printed once, with the snapshot.
func (s *Session) afterList(op string, err error) {
	st := s.ctrl.State()
	s.view.State(st)
	if err != nil && err.Error() != st.Error {
		s.view.Error(op, err.Error())
	}
}

func (s *Session) cmdRefresh(ctx context.Context, _ []string) error {
	s.afterList("refresh", s.ctrl.Refresh(ctx))
	return nil
}

func (s *Session) cmdStatus(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: status active|inactive|all")
	}
	var status domain.Status
	switch v := strings.ToLower(args[0]); v {
	case "all", "any":
	case string(domain.StatusActive), string(domain.StatusInactive):
		status = domain.Status(v)
	default:
		return fmt.Errorf("unknown status %q: want active, inactive or all", args[0])
	}
	s.afterList("status", s.ctrl.SetFilters(ctx, controller.FilterPatch{Status: &status}))
	return nil
}

func (s *Session) cmdSearch(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	s.afterList("search", s.ctrl.SetFilters(ctx, controller.FilterPatch{Search: &text}))
	return nil
}

func (s *Session) cmdNext(ctx context.Context, _ []string) error {
	st := s.ctrl.State()
	if st.Pagination.Page() >= st.TotalPages() {
		s.view.Info("already on the last page")
		return nil
	}
	offset := st.Pagination.Offset + st.Pagination.Limit
	s.afterList("next", s.ctrl.SetPagination(ctx, controller.PaginationPatch{Offset: &offset}))
	return nil
}

func (s *Session) cmdPrev(ctx context.Context, _ []string) error {
	st := s.ctrl.State()
	if st.Pagination.Offset == 0 {
		s.view.Info("already on the first page")
		return nil
	}
	offset := max(st.Pagination.Offset-st.Pagination.Limit, 0)
	s.afterList("prev", s.ctrl.SetPagination(ctx, controller.PaginationPatch{Offset: &offset}))
	return nil
}

func (s *Session) cmdPage(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: page N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid page %q", args[0])
	}
	st := s.ctrl.State()
	pages := max(st.TotalPages(), 1)
	if n < 1 || n > pages {
		return fmt.Errorf("page %d out of range 1-%d", n, pages)
	}
	offset := (n - 1) * st.Pagination.Limit
	s.afterList("page", s.ctrl.SetPagination(ctx, controller.PaginationPatch{Offset: &offset}))
	return nil
}

func (s *Session) cmdLimit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: limit N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid limit %q", args[0])
	}
	// A new page size starts over at the first page so the offset stays a
	// multiple of the limit.
	offset := 0
	s.afterList("limit", s.ctrl.SetPagination(ctx, controller.PaginationPatch{Limit: &n, Offset: &offset}))
	return nil
}

func (s *Session) cmdAdd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: add key=value ...")
	}
	fields := domain.UserFields{Status: domain.StatusActive}
	if err := applyAssignments(&fields, args); err != nil {
		return err
	}

	user, err := s.ctrl.Create(ctx, fields)
	if err != nil {
		s.view.Error("add", err.Error())
		return nil
	}
	s.view.Info("created %s (@%s)", user.ID, user.Username)
	s.view.State(s.ctrl.State())
	return nil
}

func (s *Session) cmdEdit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: edit ID key=value ...")
	}
	id := domain.ID(args[0])
	current, ok := s.onPage(id)
	if !ok {
		return fmt.Errorf("user %s is not on the current page", id)
	}
	fields := current.Fields()
	if err := applyAssignments(&fields, args[1:]); err != nil {
		return err
	}

	user, err := s.ctrl.Update(ctx, id, fields)
	if err != nil {
		s.view.Error("edit", err.Error())
		return nil
	}
	s.view.Info("updated %s (@%s)", user.ID, user.Username)
	s.view.State(s.ctrl.State())
	return nil
}

func (s *Session) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm ID")
	}
	id := domain.ID(args[0])

	if s.confirm {
		label := id.String()
		if u, ok := s.onPage(id); ok {
			label = "@" + u.Username
		}
		fmt.Fprintf(s.out, "remove %s? [y/N] ", label)
		answer, err := s.readLine(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			s.view.Info("cancelled")
			return nil
		}
	}

	if err := s.ctrl.Remove(ctx, id); err != nil {
		s.view.Error("rm", err.Error())
		return nil
	}
	s.view.Info("removed %s", id)
	s.view.State(s.ctrl.State())
	return nil
}

func (s *Session) cmdHelp(context.Context, []string) error {
	width := 0
	for _, c := range s.commands {
		width = max(width, len(c.usage))
	}
	for _, c := range s.commands {
		fmt.Fprintf(s.out, "  %-*s  %s\n", width, c.usage, c.help)
	}
	return nil
}

func (s *Session) cmdQuit(context.Context, []string) error {
	return errQuit
}

func (s *Session) onPage(id domain.ID) (domain.User, bool) {
	records := s.ctrl.State().Records
	i := slices.IndexFunc(records, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return domain.User{}, false
	}
	return records[i], true
}

// applyAssignments sets fields from key=value arguments.
func applyAssignments(f *domain.UserFields, args []string) error {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "username":
			f.Username = value
		case "email":
			f.Email = value
		case "name":
			f.Name = value
		case "lastname":
			f.Lastname = value
		case "status":
			f.Status = domain.Status(strings.ToLower(value))
		case "age":
			age, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid age %q", value)
			}
			f.Age = age
		default:
			return fmt.Errorf("unknown field %q", key)
		}
	}
	return nil
}

// splitArgs splits a command line on whitespace. Single or double quotes
// group words into one argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		started bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			started = true
		case r == ' ' || r == '\t':
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

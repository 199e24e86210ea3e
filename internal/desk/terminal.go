package desk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/circdesk/internal/circulation"
	"github.com/lehigh-university-libraries/circdesk/internal/models"
	"golang.org/x/term"
)

// Controller is the circulation workflow driven by the terminal
type Controller interface {
	Snapshot() circulation.Snapshot
	Submit(ctx context.Context, code string) error
	Dispatch(ctx context.Context) error
	Cancel(ctx context.Context) error
	Dismiss(ctx context.Context) error
	SetMode(ctx context.Context, m circulation.Mode) error
	SelectMember(ctx context.Context, id int64) error
	ClearMember(ctx context.Context) error
}

// Directory lists the members a checkout can be made to
type Directory interface {
	ListMembers(ctx context.Context) ([]models.Member, error)
}

// Terminal reads operator input and prints session changes
type Terminal struct {
	in      io.Reader
	out     io.Writer
	members Directory
	prompt  bool

	mu    sync.Mutex
	names map[int64]string
}

// NewTerminal creates a terminal. members may be nil, in which case member
// names are not shown.
func NewTerminal(in io.Reader, out io.Writer, members Directory) *Terminal {
	return &Terminal{
		in:      in,
		out:     out,
		members: members,
		prompt:  isTerminal(in),
		names:   make(map[int64]string),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Show prints a snapshot. It is meant to be registered as the controller's
// change observer.
func (t *Terminal) Show(s circulation.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.write(Render(s, t.names[s.MemberID]))
}

// Run processes input lines until /quit, end of input or ctx is done
func (t *Terminal) Run(ctx context.Context, ctrl Controller) error {
	if err := t.refreshMembers(ctx); err != nil {
		slog.Warn("Unable to load members", "err", err)
	}
	t.print("Type /help for commands.\n")
	t.showPrompt()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		case line := <-lines:
			quit, err := t.exec(ctx, ctrl, line)
			if quit {
				return nil
			}
			if err != nil {
				t.print("! %v\n", err)
			}
			t.showPrompt()
		}
	}
}

func (t *Terminal) exec(ctx context.Context, ctrl Controller, line string) (quit bool, err error) {
	cmd, err := Parse(line)
	if err != nil {
		return false, err
	}

	switch cmd.Kind {
	case KindCode:
		err = ctrl.Submit(ctx, cmd.Code)
	case KindDispatch:
		err = ctrl.Dispatch(ctx)
		if errors.Is(err, circulation.ErrMemberRequired) {
			// already on screen as feedback
			err = nil
		}
	case KindMode:
		err = ctrl.SetMode(ctx, cmd.Mode)
	case KindMember:
		if name, ok := t.memberName(cmd.MemberID); ok {
			t.print("Member %d: %s\n", cmd.MemberID, name)
		} else if t.members != nil {
			t.print("Member %d is not in the member list\n", cmd.MemberID)
		}
		err = ctrl.SelectMember(ctx, cmd.MemberID)
	case KindClearMember:
		err = ctrl.ClearMember(ctx)
	case KindMembers:
		if err = t.refreshMembers(ctx); err == nil {
			t.printMembers()
		}
	case KindCancel:
		err = ctrl.Cancel(ctx)
	case KindDismiss:
		err = ctrl.Dismiss(ctx)
	case KindStatus:
		s := ctrl.Snapshot()
		name, _ := t.memberName(s.MemberID)
		t.print("%s", Render(s, name))
	case KindHelp:
		t.print("%s", help)
	case KindQuit:
		return true, nil
	}
	return false, err
}

func (t *Terminal) refreshMembers(ctx context.Context) error {
	if t.members == nil {
		return nil
	}
	members, err := t.members.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	names := make(map[int64]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}
	t.mu.Lock()
	t.names = names
	t.mu.Unlock()
	return nil
}

func (t *Terminal) memberName(id int64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, ok := t.names[id]
	return name, ok
}

func (t *Terminal) printMembers() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.names) == 0 {
		t.write("No members registered\n")
		return
	}
	ids := make([]int64, 0, len(t.names))
	for id := range t.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%6d  %s\n", id, t.names[id])
	}
	t.write(b.String())
}

func (t *Terminal) showPrompt() {
	if t.prompt {
		t.print("> ")
	}
}

func (t *Terminal) print(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.write(fmt.Sprintf(format, args...))
}

// write must be called with mu held
func (t *Terminal) write(s string) {
	if _, err := io.WriteString(t.out, s); err != nil {
		slog.Error("Unable to write to terminal", "err", err)
	}
}

// Render formats a snapshot as a status line followed by any feedback or
// lookup result. memberName may be empty.
func Render(s circulation.Snapshot, memberName string) string {
	var b strings.Builder
	b.WriteString("[" + string(s.Mode))
	switch {
	case s.MemberID != 0 && memberName != "":
		fmt.Fprintf(&b, " | member %d %s", s.MemberID, memberName)
	case s.MemberID != 0:
		fmt.Fprintf(&b, " | member %d", s.MemberID)
	case s.Mode == circulation.ModeCheckout:
		b.WriteString(" | no member")
	}
	b.WriteString("] ")

	switch s.Phase {
	case circulation.PhaseScanning:
		if s.Capturing {
			b.WriteString("scanning...")
		} else {
			b.WriteString("type a code")
		}
	case circulation.PhaseCaptured:
		fmt.Fprintf(&b, "captured %s, press enter to send or /cancel", s.Code)
	case circulation.PhaseInFlight:
		if s.Mode == circulation.ModeTrack {
			fmt.Fprintf(&b, "looking up %s...", s.Code)
		} else {
			fmt.Fprintf(&b, "sending %s...", s.Code)
		}
	case circulation.PhaseFeedback:
		switch {
		case s.Lookup != nil:
			fmt.Fprintf(&b, "%s, /dismiss to scan again", s.Code)
		case s.Feedback != nil && s.Feedback.Kind == circulation.FeedbackError:
			fmt.Fprintf(&b, "%s, /ok to retry or /cancel", s.Code)
		default:
			b.WriteString(s.Code)
		}
	}
	b.WriteString("\n")

	switch {
	case s.Lookup != nil:
		b.WriteString(circulation.RenderLookup(*s.Lookup))
		if s.Lookup.State != circulation.LookupFailed && s.Feedback != nil {
			fmt.Fprintf(&b, "%s\n", s.Feedback.Text)
		}
	case s.Feedback != nil:
		fmt.Fprintf(&b, "%s\n", s.Feedback.Text)
	}
	return b.String()
}

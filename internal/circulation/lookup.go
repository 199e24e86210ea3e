package circulation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/circdesk/internal/api"
	"github.com/lehigh-university-libraries/circdesk/internal/journal"
	"github.com/lehigh-university-libraries/circdesk/internal/models"
)

type LookupState string

const (
	LookupLoading  LookupState = "loading"
	LookupFound    LookupState = "found"
	LookupNotFound LookupState = "not_found"
	LookupFailed   LookupState = "failed"
)

// LookupView is what the track presenter shows. Views are never modified
// after they are published.
type LookupView struct {
	State LookupState
	Code  string
	Book  *models.Book
	Loan  *models.Loan // open loan, only when the book is out
	Err   string
}

func (c *Controller) startLookup() {
	gen, code := c.epoch, c.code
	c.lookup = &LookupView{State: LookupLoading, Code: code}
	c.pending = true
	c.phase = PhaseInFlight

	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		res, err := c.api.Track(ctx, code)
		elapsed := time.Since(start)
		if !c.inbox.push(func() { c.lookedUp(gen, code, res, err, elapsed) }) {
			entry := lookupEntry(NewLookupView(code, res, err), elapsed)
			entry.Discarded = true
			c.record(entry)
		}
	}()
}

func lookupEntry(view *LookupView, elapsed time.Duration) journal.Entry {
	entry := journal.Entry{
		Mode:    string(ModeTrack),
		Code:    view.Code,
		Elapsed: elapsed,
	}
	switch view.State {
	case LookupFound:
		entry.Outcome = journal.OutcomeSuccess
		entry.Detail = string(view.Book.Status)
	case LookupNotFound:
		entry.Outcome = journal.OutcomeNotFound
	default:
		entry.Outcome = journal.OutcomeError
		entry.Detail = view.Err
	}
	return entry
}

func (c *Controller) lookedUp(gen uint64, code string, res *models.TrackResult, err error, elapsed time.Duration) {
	view := NewLookupView(code, res, err)
	entry := lookupEntry(view, elapsed)
	entry.Discarded = gen != c.epoch
	c.record(entry)

	if gen != c.epoch {
		slog.Debug("Discarding lookup for a dismissed code", "code", code)
		return
	}

	c.pending = false
	c.phase = PhaseFeedback
	c.lookup = view
	if view.State == LookupFailed {
		c.feedback = &Feedback{Kind: FeedbackError, Text: "Error: " + view.Err}
	}
	slog.Info("Lookup finished", "code", code, "state", view.State)
}

// NewLookupView turns a track result into the presenter state
func NewLookupView(code string, res *models.TrackResult, err error) *LookupView {
	switch {
	case api.IsNotFound(err):
		return &LookupView{State: LookupNotFound, Code: code}
	case err != nil:
		return &LookupView{State: LookupFailed, Code: code, Err: err.Error()}
	case res == nil:
		return &LookupView{State: LookupNotFound, Code: code}
	}

	book := res.Book
	view := &LookupView{State: LookupFound, Code: code, Book: &book}
	if !book.Available() {
		if loan := res.OpenLoan(); loan != nil {
			l := *loan
			view.Loan = &l
		}
	}
	return view
}

// RenderLookup formats a lookup view for the terminal
func RenderLookup(v LookupView) string {
	var b strings.Builder
	switch v.State {
	case LookupLoading:
		fmt.Fprintf(&b, "Looking up %s...\n", shortCode(v.Code))
	case LookupNotFound:
		fmt.Fprintf(&b, "Book not found (%s)\n", shortCode(v.Code))
	case LookupFailed:
		fmt.Fprintf(&b, "Lookup failed: %s\n", v.Err)
	case LookupFound:
		fmt.Fprintf(&b, "%s by %s\n", v.Book.Title, v.Book.Author)
		if v.Book.Available() {
			b.WriteString("Status: available\n")
			break
		}
		b.WriteString("Status: on loan\n")
		if v.Loan != nil {
			fmt.Fprintf(&b, "Borrower: %s\n", borrowerName(v.Loan))
			fmt.Fprintf(&b, "Due: %s\n", v.Loan.DueDate.Format("2006-01-02"))
		}
	}
	return b.String()
}

func borrowerName(l *models.Loan) string {
	if l.Member != nil && l.Member.Name != "" {
		return l.Member.Name
	}
	return fmt.Sprintf("member #%d", l.MemberID)
}

package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/circdesk/internal/journal"
	"github.com/lehigh-university-libraries/circdesk/internal/models"
)

// dispatch issues exactly one request for the captured code
func (c *Controller) dispatch() error {
	switch {
	case c.code == "":
		return ErrNoCapture
	case c.mode == ModeTrack:
		return ErrTrackMode
	case c.pending:
		return ErrPending
	case c.phase == PhaseFeedback && c.feedback != nil && c.feedback.Kind == FeedbackSuccess:
		return ErrAlreadyDispatched
	}

	if c.mode == ModeCheckout && c.memberID == 0 {
		c.feedback = &Feedback{Kind: FeedbackError, Text: "Select a member before checking out"}
		c.phase = PhaseFeedback
		return ErrMemberRequired
	}

	gen, mode, code, memberID := c.epoch, c.mode, c.code, c.memberID
	c.pending = true
	c.phase = PhaseInFlight
	c.feedback = nil
	slog.Info("Dispatching", "mode", mode, "code", code, "member_id", memberID)

	// A sent request is allowed to finish even if the desk shuts down.
	ctx := context.WithoutCancel(c.ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		var (
			conf *models.Confirmation
			err  error
		)
		if mode == ModeCheckout {
			conf, err = c.api.Checkout(ctx, code, memberID)
		} else {
			conf, err = c.api.Return(ctx, code)
		}
		elapsed := time.Since(start)
		if !c.inbox.push(func() { c.dispatched(gen, mode, code, memberID, conf, err, elapsed) }) {
			entry := dispatchEntry(mode, code, memberID, conf, err, elapsed)
			entry.Discarded = true
			c.record(entry)
		}
	}()
	return nil
}

func dispatchEntry(mode Mode, code string, memberID int64, conf *models.Confirmation, err error, elapsed time.Duration) journal.Entry {
	entry := journal.Entry{
		Mode:     string(mode),
		Code:     code,
		MemberID: memberID,
		Elapsed:  elapsed,
	}
	if err != nil {
		entry.Outcome = journal.OutcomeError
		entry.Detail = err.Error()
	} else {
		entry.Outcome = journal.OutcomeSuccess
		if conf != nil {
			entry.Detail = conf.Message
		}
	}
	return entry
}

func (c *Controller) dispatched(gen uint64, mode Mode, code string, memberID int64, conf *models.Confirmation, err error, elapsed time.Duration) {
	stale := gen != c.epoch
	entry := dispatchEntry(mode, code, memberID, conf, err, elapsed)
	entry.Discarded = stale
	c.record(entry)

	if stale {
		slog.Info("Discarding result for a code the operator already left", "mode", mode, "code", code, "outcome", entry.Outcome)
		return
	}

	c.pending = false
	c.phase = PhaseFeedback

	if err != nil {
		slog.Warn("Request rejected", "mode", mode, "code", code, "err", err)
		c.feedback = &Feedback{Kind: FeedbackError, Text: "Error: " + err.Error()}
		return
	}

	slog.Info("Request succeeded", "mode", mode, "code", code, "member_id", memberID, "elapsed", elapsed)
	c.feedback = &Feedback{Kind: FeedbackSuccess, Text: successText(mode, code, memberID, conf)}
	c.timer = time.AfterFunc(c.resetDelay, func() {
		c.inbox.push(func() { c.timerFired(gen) })
	})
}

// timerFired runs once the success banner has been shown long enough
func (c *Controller) timerFired(gen uint64) {
	if gen != c.epoch {
		return
	}
	c.timer = nil
	c.reset()
}

func successText(mode Mode, code string, memberID int64, conf *models.Confirmation) string {
	msg := ""
	if conf != nil {
		msg = conf.Message
	}
	if mode == ModeCheckout {
		if msg == "" {
			msg = "Checkout successful"
		}
		return fmt.Sprintf("%s: book %s to member %d", msg, shortCode(code), memberID)
	}
	if msg == "" {
		msg = "Return successful"
	}
	return fmt.Sprintf("%s: book %s", msg, shortCode(code))
}

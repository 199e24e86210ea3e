// Package desk is the operator terminal of a circulation desk: it reads
// commands and typed codes line by line and prints the scan session as it
// changes.
package desk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/circdesk/internal/circulation"
)

// Kind identifies an operator command
type Kind int

const (
	KindCode Kind = iota
	KindDispatch
	KindMode
	KindMember
	KindClearMember
	KindMembers
	KindCancel
	KindDismiss
	KindStatus
	KindHelp
	KindQuit
)

// Command is one parsed input line
type Command struct {
	Kind     Kind
	Code     string
	Mode     circulation.Mode
	MemberID int64
}

var ErrUnknownCommand = errors.New("unknown command")

const help = `Scan a label or type its code, then:
  enter or /ok      send the checkout or return
  /cancel           discard the captured code
  /dismiss          close a lookup and scan again
  /checkout /return /track
                    switch mode
  /member <id>      select the borrower, /member alone clears it
  /members          list members
  /status           show the current state
  /quit             leave the desk
Codes that start with / are typed as //code.
`

// Parse turns an input line into a command. Anything that is not a command is
// a manually entered code.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: KindDispatch}, nil
	}
	if strings.HasPrefix(line, "//") {
		return Command{Kind: KindCode, Code: line[1:]}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: KindCode, Code: line}, nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "ok", "send":
		return Command{Kind: KindDispatch}, nil
	case "checkout", "return", "track":
		mode, err := circulation.ParseMode(name)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindMode, Mode: mode}, nil
	case "mode":
		mode, err := circulation.ParseMode(arg)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindMode, Mode: mode}, nil
	case "member":
		if arg == "" {
			return Command{Kind: KindClearMember}, nil
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return Command{}, fmt.Errorf("%w: %q", circulation.ErrInvalidMember, arg)
		}
		return Command{Kind: KindMember, MemberID: id}, nil
	case "members":
		return Command{Kind: KindMembers}, nil
	case "cancel":
		return Command{Kind: KindCancel}, nil
	case "dismiss":
		return Command{Kind: KindDismiss}, nil
	case "status":
		return Command{Kind: KindStatus}, nil
	case "help", "?":
		return Command{Kind: KindHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: KindQuit}, nil
	}
	return Command{}, fmt.Errorf("%w /%s, type /help", ErrUnknownCommand, name)
}

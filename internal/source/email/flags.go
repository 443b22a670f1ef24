package email

import (
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/vocabulary"
)

// Apple Mail stores the flag color in three keyword bits next to \Flagged.
const (
	flagBit0 imap.Flag = "$MailFlagBit0"
	flagBit1 imap.Flag = "$MailFlagBit1"
	flagBit2 imap.Flag = "$MailFlagBit2"
)

var colorBits = []imap.Flag{flagBit0, flagBit1, flagBit2}

// flagColorBits maps a flag color to the bits that must be set. Bits not
// listed are cleared. The default color only sets \Flagged and leaves the
// bits alone.
var flagColorBits = map[model.FlagColor][]imap.Flag{
	model.FlagRed:    {},
	model.FlagOrange: {flagBit0},
	model.FlagYellow: {flagBit1},
	model.FlagGreen:  {flagBit0, flagBit1},
	model.FlagBlue:   {flagBit2},
	model.FlagPurple: {flagBit0, flagBit2},
	model.FlagGray:   {flagBit1, flagBit2},
}

const backgroundKeywordPrefix = "$MailBotBackground"

// BackgroundKeyword returns the keyword recording a background color.
// BackgroundNone has no keyword.
func BackgroundKeyword(c model.BackgroundColor) imap.Flag {
	if c == model.BackgroundNone || c == "" {
		return ""
	}
	name := string(c)
	return imap.Flag(backgroundKeywordPrefix + strings.ToUpper(name[:1]) + name[1:])
}

func allBackgroundKeywords() []imap.Flag {
	var out []imap.Flag
	for _, c := range vocabulary.BackgroundColors() {
		if k := BackgroundKeyword(c); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// planDecision translates d into STORE commands in decision order plus the
// last requested move.
func planDecision(d *model.Decision) applyPlan {
	var p applyPlan
	if d == nil {
		return p
	}

	for _, a := range d.Actions {
		switch a.Kind {
		case model.ActionMarkAsRead:
			p.stores = append(p.stores, storeOp{Op: imap.StoreFlagsAdd, Flags: []imap.Flag{imap.FlagSeen}})
		case model.ActionMarkAsUnread:
			p.stores = append(p.stores, storeOp{Op: imap.StoreFlagsDel, Flags: []imap.Flag{imap.FlagSeen}})
		case model.ActionFlag:
			p.stores = append(p.stores, flagOps(a.FlagColor)...)
		case model.ActionSetBackgroundColor:
			p.stores = append(p.stores, backgroundOps(a.BackgroundColor)...)
		case model.ActionMoveToTrash, model.ActionMoveToArchive, model.ActionMoveToJunk:
			p.move = a.Kind
		}
	}
	return p
}

func flagOps(c model.FlagColor) []storeOp {
	bits, ok := flagColorBits[c]
	if !ok {
		return []storeOp{{Op: imap.StoreFlagsAdd, Flags: []imap.Flag{imap.FlagFlagged}}}
	}

	add := append([]imap.Flag{imap.FlagFlagged}, bits...)
	var del []imap.Flag
	for _, b := range colorBits {
		if !containsFlag(bits, b) {
			del = append(del, b)
		}
	}

	ops := []storeOp{{Op: imap.StoreFlagsAdd, Flags: add}}
	if len(del) > 0 {
		ops = append(ops, storeOp{Op: imap.StoreFlagsDel, Flags: del})
	}
	return ops
}

func backgroundOps(c model.BackgroundColor) []storeOp {
	keep := BackgroundKeyword(c)
	var del []imap.Flag
	for _, k := range allBackgroundKeywords() {
		if k != keep {
			del = append(del, k)
		}
	}

	ops := []storeOp{{Op: imap.StoreFlagsDel, Flags: del}}
	if keep != "" {
		ops = append(ops, storeOp{Op: imap.StoreFlagsAdd, Flags: []imap.Flag{keep}})
	}
	return ops
}

func containsFlag(flags []imap.Flag, f imap.Flag) bool {
	for _, x := range flags {
		if x == f {
			return true
		}
	}
	return false
}

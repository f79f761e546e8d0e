// Package levels maps Blue Canary severity names to the numeric status codes
// sent on the wire. Higher ranks are more severe; ok (0) is the most verbose
// level that is ever dispatched. debug is reserved and never sent, but it
// orders below ok, so a debug threshold lets every event through.
package levels

import (
	"strconv"

	"github.com/brightfish/bluecanary/pkg/sdk/errs"
)

// Level is a severity rank.
type Level int

const (
	Ok        Level = 0
	Info      Level = 1
	Notice    Level = 2
	Warning   Level = 3
	Error     Level = 4
	Critical  Level = 5
	Alert     Level = 6
	Emergency Level = 7
	Debug     Level = 255
)

// Default is the threshold a client starts with: everything is dispatched.
const Default = Ok

var names = map[Level]string{
	Emergency: "emergency",
	Alert:     "alert",
	Critical:  "critical",
	Error:     "error",
	Warning:   "warning",
	Notice:    "notice",
	Info:      "info",
	Ok:        "ok",
	Debug:     "debug",
}

var byName = func() map[string]Level {
	m := make(map[string]Level, len(names))
	for l, n := range names {
		m[n] = l
	}
	return m
}()

// ordered from most to least severe, debug last
var all = []Level{Emergency, Alert, Critical, Error, Warning, Notice, Info, Ok, Debug}

// All returns every level, most severe first.
func All() []Level {
	out := make([]Level, len(all))
	copy(out, all)
	return out
}

// Names returns every level name, most severe first.
func Names() []string {
	out := make([]string, 0, len(all))
	for _, l := range all {
		out = append(out, names[l])
	}
	return out
}

// Parse looks up a level by name.
func Parse(name string) (Level, bool) {
	l, ok := byName[name]
	return l, ok
}

// FromRank returns the level with the given numeric rank.
func FromRank(rank int) (Level, error) {
	l := Level(rank)
	if !l.Valid() {
		return 0, errs.Newf(errs.KindUnknownLevel, "No level is defined for rank %d.", rank)
	}
	return l, nil
}

// Valid reports whether l is a defined level.
func (l Level) Valid() bool {
	_, ok := names[l]
	return ok
}

// AtLeast reports whether l is as severe as threshold or more.
func (l Level) AtLeast(threshold Level) bool {
	return l.severity() >= threshold.severity()
}

// severity places debug below ok; its wire code 255 is not an order.
func (l Level) severity() int {
	if l == Debug {
		return int(Ok) - 1
	}
	return int(l)
}

func (l Level) String() string {
	if n, ok := names[l]; ok {
		return n
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

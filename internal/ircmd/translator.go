package ircmd

import "strings"

// MaxTaskNameLen is the exclusive upper bound for an accepted task name.
// Longer names are dropped rather than rejected.
const MaxTaskNameLen = 128

// MsgNameFormat is the reply for a command or alias name outside
// [a-zA-Z0-9_-].
const MsgNameFormat = "name format error, only supports letters, numbers, underscores, and hyphens"

const (
	msgNameNotSet    = "name not set"
	msgCronError     = "cron expression error"
	msgTaskIDMissing = "taskid not set"
)

type translateFunc func(t *Translator, line string, requester int64) (Record, error)

// dispatch is keyed by Kind so unknown words fail in Translate with a
// typed error instead of reaching a handler.
var dispatch = map[Kind]translateFunc{
	KindCopy:            (*Translator).copyCmd,
	KindExec:            (*Translator).execCmd,
	KindTerminate:       joinedArg(KindTerminate),
	KindTerminateByName: joinedArg(KindTerminateByName),
	KindListCommands:    noArgs(KindListCommands),
	KindListTaskIDs:     noArgs(KindListTaskIDs),
	KindListTasks:       noArgs(KindListTasks),
	KindGetTask:         (*Translator).taskCmd,
}

// Option configures a Translator.
type Option func(*Translator)

// WithCronCheck installs a validator for cron expressions in exec lines.
// Without one, any non-empty expression is passed through to the device.
func WithCronCheck(fn func(expr string) error) Option {
	return func(t *Translator) { t.cronCheck = fn }
}

// Translator converts command lines into records. It holds no mutable state
// after construction and is safe for concurrent use.
type Translator struct {
	cronCheck func(expr string) error
}

func NewTranslator(opts ...Option) *Translator {
	t := &Translator{}
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}
	return t
}

// Translate dispatches on the first word of line. line is the full command
// line, command word included.
func (t *Translator) Translate(line string, requester int64) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Record{}, &UnknownCommandError{}
	}
	k, ok := LookupKind(fields[0])
	if !ok {
		return Record{}, &UnknownCommandError{Name: NormalizeCommand(fields[0])}
	}
	return t.TranslateKind(k, line, requester)
}

// TranslateKind runs the translator registered for k against line.
func (t *Translator) TranslateKind(k Kind, line string, requester int64) (Record, error) {
	fn, ok := dispatch[k]
	if !ok {
		return Record{}, &UnknownCommandError{Name: k.String()}
	}
	return fn(t, line, requester)
}

// args returns the whitespace separated tokens after the command word.
func args(line string) []string {
	f := strings.Fields(line)
	if len(f) <= 1 {
		return nil
	}
	return f[1:]
}

func (t *Translator) copyCmd(line string, requester int64) (Record, error) {
	a := args(line)
	if len(a) == 0 {
		return Record{}, missing(KindCopy, "name", msgNameNotSet)
	}
	if !ValidName(a[0]) {
		return Record{}, malformed(KindCopy, "name", MsgNameFormat)
	}
	r := Record{Kind: KindCopy, RequesterID: requester, Name: a[0]}
	if len(a) > 1 {
		r.Old = a[1]
	}
	return r, nil
}

func (t *Translator) execCmd(line string, requester int64) (Record, error) {
	if strings.Contains(line, "cron(") {
		return t.execCron(line, requester)
	}
	a := args(line)
	if len(a) == 0 {
		return Record{}, missing(KindExec, "name", msgNameNotSet)
	}
	r := Record{Kind: KindExec, RequesterID: requester, Name: a[0], Remain: 1}
	if len(a) > 1 {
		r.Start = ParseAbsoluteTime(a[1])
		r.Delay = ParseDuration(a[1])
	}
	if len(a) > 2 {
		r.Freq = ParseDuration(a[2])
	}
	if len(a) > 3 {
		r.Remain = ParseRepeatCount(a[3])
	}
	if len(a) > 4 {
		r.TaskName = acceptTaskName(a[4])
	}
	return r, nil
}

// execCron handles `exec <name> cron(<expr>) [remain] [taskname]`. The
// expression spans from the first '(' to the last ')' of the line.
func (t *Translator) execCron(line string, requester int64) (Record, error) {
	a := args(line)
	if len(a) == 0 || strings.Contains(a[0], "cron(") {
		return Record{}, missing(KindExec, "name", msgNameNotSet)
	}

	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open < 0 || closing <= open {
		return Record{}, malformed(KindExec, "cron", msgCronError)
	}
	expr := strings.TrimSpace(line[open+1 : closing])
	if expr == "" {
		return Record{}, missing(KindExec, "cron", msgCronError)
	}
	if t.cronCheck != nil {
		if err := t.cronCheck(expr); err != nil {
			return Record{}, malformed(KindExec, "cron", msgCronError)
		}
	}

	r := Record{Kind: KindExec, RequesterID: requester, Name: a[0], Cron: expr, Remain: 1}
	rest := strings.Fields(line[closing+1:])
	if len(rest) > 0 {
		r.Remain = ParseRepeatCount(rest[0])
	}
	if len(rest) > 1 {
		r.TaskName = acceptTaskName(rest[1])
	}
	return r, nil
}

func (t *Translator) taskCmd(line string, requester int64) (Record, error) {
	a := args(line)
	if len(a) == 0 {
		return Record{}, missing(KindGetTask, "id", msgTaskIDMissing)
	}
	return Record{Kind: KindGetTask, RequesterID: requester, ID: a[0]}, nil
}

// joinedArg builds translators for terminate and terminatename, which pass
// every remaining token through as one space separated field.
func joinedArg(k Kind) translateFunc {
	return func(_ *Translator, line string, requester int64) (Record, error) {
		v := strings.Join(args(line), " ")
		r := Record{Kind: k, RequesterID: requester}
		if k == KindTerminate {
			r.TaskID = v
		} else {
			r.TaskName = v
		}
		return r, nil
	}
}

func noArgs(k Kind) translateFunc {
	return func(_ *Translator, _ string, requester int64) (Record, error) {
		return Record{Kind: k, RequesterID: requester}, nil
	}
}

func acceptTaskName(s string) string {
	if len(s) < MaxTaskNameLen {
		return s
	}
	return ""
}

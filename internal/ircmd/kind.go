package ircmd

import "strings"

// Kind identifies a task-control command understood by the device.
type Kind int

const (
	KindUnknown Kind = iota
	KindCopy
	KindExec
	KindTerminate
	KindTerminateByName
	KindListCommands
	KindListTaskIDs
	KindListTasks
	KindGetTask
)

// wire names as the device firmware expects them in the "cmd" field.
var kindNames = [...]string{
	KindUnknown:         "",
	KindCopy:            "copy",
	KindExec:            "exec",
	KindTerminate:       "terminate",
	KindTerminateByName: "terminatename",
	KindListCommands:    "cmdlist",
	KindListTaskIDs:     "taskidlist",
	KindListTasks:       "tasklist",
	KindGetTask:         "task",
}

// Kinds lists every translatable kind in menu order.
func Kinds() []Kind {
	return []Kind{
		KindCopy, KindExec, KindTerminate, KindTerminateByName,
		KindListCommands, KindListTaskIDs, KindListTasks, KindGetTask,
	}
}

func (k Kind) String() string {
	if k <= KindUnknown || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// LookupKind resolves a command word. A leading "/" and a trailing
// "@botname" are ignored, and matching is case-insensitive.
func LookupKind(word string) (Kind, bool) {
	w := NormalizeCommand(word)
	if w == "" {
		return KindUnknown, false
	}
	for k := KindCopy; int(k) < len(kindNames); k++ {
		if kindNames[k] == w {
			return k, true
		}
	}
	return KindUnknown, false
}

// NormalizeCommand strips the chat decorations from a command word.
func NormalizeCommand(word string) string {
	w := strings.TrimSpace(word)
	w = strings.TrimPrefix(w, "/")
	if i := strings.IndexByte(w, '@'); i >= 0 {
		w = w[:i]
	}
	return strings.ToLower(w)
}

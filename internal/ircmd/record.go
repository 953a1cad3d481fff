package ircmd

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// MaskModulus truncates requester ids echoed back into chats.
const MaskModulus = 100000

// Record is a task-control record. Which payload fields are serialized
// depends on Kind; see MarshalJSON.
type Record struct {
	Kind        Kind
	RequesterID int64

	Name string // copy, exec
	Old  string // copy

	Start    int64 // exec: absolute unix time
	Delay    int64 // exec: relative offset in seconds
	Freq     int64 // exec: period in seconds
	Cron     string
	Remain   int64
	TaskName string // exec, terminatename

	TaskID string // terminate
	ID     string // task
}

// Masked returns a copy whose requester id is reduced modulo MaskModulus.
func (r Record) Masked() Record {
	r.RequesterID %= MaskModulus
	return r
}

// MarshalJSON emits the flat object the device parses, with "cmd" first and
// "chat_id" last. exec always carries every scheduling field, zero or not.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	w := fieldWriter{b: &b}
	w.str("cmd", r.Kind.String())
	switch r.Kind {
	case KindCopy:
		w.str("name", r.Name)
		w.str("old", r.Old)
	case KindExec:
		w.str("name", r.Name)
		w.num("start", r.Start)
		w.num("delay", r.Delay)
		w.num("freq", r.Freq)
		w.str("cron", r.Cron)
		w.num("remain", r.Remain)
		w.str("taskname", r.TaskName)
	case KindTerminate:
		w.str("taskid", r.TaskID)
	case KindTerminateByName:
		w.str("taskname", r.TaskName)
	case KindGetTask:
		w.str("id", r.ID)
	}
	w.num("chat_id", r.RequesterID)
	b.WriteByte('}')
	return b.Bytes(), nil
}

// String renders the record as its JSON form.
func (r Record) String() string {
	b, _ := r.MarshalJSON()
	return string(b)
}

type fieldWriter struct {
	b *bytes.Buffer
	n int
}

func (w *fieldWriter) key(k string) {
	if w.n > 0 {
		w.b.WriteByte(',')
	}
	w.n++
	w.b.WriteString(strconv.Quote(k))
	w.b.WriteByte(':')
}

func (w *fieldWriter) str(k, v string) {
	w.key(k)
	enc, _ := json.Marshal(v)
	w.b.Write(enc)
}

func (w *fieldWriter) num(k string, v int64) {
	w.key(k)
	w.b.WriteString(strconv.FormatInt(v, 10))
}

package ircmd

import "testing"

func TestRecordJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "exec keeps zero fields",
			rec:  Record{Kind: KindExec, RequesterID: 42, Name: "light", Delay: 600, Freq: 3600, Remain: 3},
			want: `{"cmd":"exec","name":"light","start":0,"delay":600,"freq":3600,"cron":"","remain":3,"taskname":"","chat_id":42}`,
		},
		{
			name: "copy",
			rec:  Record{Kind: KindCopy, RequesterID: 7, Name: "tv"},
			want: `{"cmd":"copy","name":"tv","old":"","chat_id":7}`,
		},
		{
			name: "terminatename",
			rec:  Record{Kind: KindTerminateByName, RequesterID: 7, TaskName: "a b"},
			want: `{"cmd":"terminatename","taskname":"a b","chat_id":7}`,
		},
		{
			name: "list",
			rec:  Record{Kind: KindListTasks, RequesterID: 7},
			want: `{"cmd":"tasklist","chat_id":7}`,
		},
		{
			name: "task",
			rec:  Record{Kind: KindGetTask, RequesterID: 7, ID: "3"},
			want: `{"cmd":"task","id":"3","chat_id":7}`,
		},
	}
	for _, tt := range tests {
		if got := tt.rec.String(); got != tt.want {
			t.Fatalf("%s: JSON = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestRecordMasked(t *testing.T) {
	t.Parallel()
	r := Record{Kind: KindListTasks, RequesterID: 123456789}
	if got := r.Masked().RequesterID; got != 56789 {
		t.Fatalf("Masked().RequesterID = %d, want 56789", got)
	}
	if r.RequesterID != 123456789 {
		t.Fatal("Masked mutated the receiver")
	}
}

func TestLookupKind(t *testing.T) {
	t.Parallel()
	for _, k := range Kinds() {
		got, ok := LookupKind("/" + k.String() + "@bot")
		if !ok || got != k {
			t.Fatalf("LookupKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := LookupKind("device"); ok {
		t.Fatal("LookupKind(device) resolved to a record kind")
	}
}

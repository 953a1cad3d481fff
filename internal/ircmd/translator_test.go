package ircmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTranslateRecords(t *testing.T) {
	t.Parallel()
	const who = int64(123456789)
	tests := []struct {
		name string
		line string
		want Record
	}{
		{
			name: "copy",
			line: "copy tv_on",
			want: Record{Kind: KindCopy, RequesterID: who, Name: "tv_on"},
		},
		{
			name: "copy with old",
			line: "/copy tv_on tv_old",
			want: Record{Kind: KindCopy, RequesterID: who, Name: "tv_on", Old: "tv_old"},
		},
		{
			name: "exec interval",
			line: "exec light 10m 1h 3",
			want: Record{Kind: KindExec, RequesterID: who, Name: "light", Delay: 600, Freq: 3600, Remain: 3},
		},
		{
			name: "exec absolute start",
			line: "exec light 1700000000 1d x nightly",
			want: Record{Kind: KindExec, RequesterID: who, Name: "light", Start: 1700000000, Freq: 86400, Remain: 1, TaskName: "nightly"},
		},
		{
			name: "exec name only",
			line: "exec light",
			want: Record{Kind: KindExec, RequesterID: who, Name: "light", Remain: 1},
		},
		{
			name: "exec cron",
			line: "exec foo cron(0 */2 * * *) 5 myname",
			want: Record{Kind: KindExec, RequesterID: who, Name: "foo", Cron: "0 */2 * * *", Remain: 5, TaskName: "myname"},
		},
		{
			name: "exec cron defaults",
			line: "exec foo cron(0 8 * * *)",
			want: Record{Kind: KindExec, RequesterID: who, Name: "foo", Cron: "0 8 * * *", Remain: 1},
		},
		{
			name: "exec long taskname dropped",
			line: "exec light 0 0 2 " + strings.Repeat("n", MaxTaskNameLen),
			want: Record{Kind: KindExec, RequesterID: who, Name: "light", Remain: 2},
		},
		{
			name: "terminate joins ids",
			line: "terminate 3 4  5",
			want: Record{Kind: KindTerminate, RequesterID: who, TaskID: "3 4 5"},
		},
		{
			name: "terminatename",
			line: "terminatename morning lights",
			want: Record{Kind: KindTerminateByName, RequesterID: who, TaskName: "morning lights"},
		},
		{
			name: "cmdlist ignores args",
			line: "cmdlist extra",
			want: Record{Kind: KindListCommands, RequesterID: who},
		},
		{
			name: "taskidlist",
			line: "/taskidlist@ir_bot",
			want: Record{Kind: KindListTaskIDs, RequesterID: who},
		},
		{
			name: "tasklist",
			line: "tasklist",
			want: Record{Kind: KindListTasks, RequesterID: who},
		},
		{
			name: "task",
			line: "task a7",
			want: Record{Kind: KindGetTask, RequesterID: who, ID: "a7"},
		},
	}

	tr := NewTranslator()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tr.Translate(tt.line, who)
			if err != nil {
				t.Fatalf("Translate(%q) error: %v", tt.line, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Translate(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestTranslateValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line   string
		field  string
		reason Reason
		msg    string
	}{
		{"copy", "name", ReasonMissing, "name not set"},
		{"copy tv.on", "name", ReasonMalformed, "name format error, only supports letters, numbers, underscores, and hyphens"},
		{"exec", "name", ReasonMissing, "name not set"},
		{"exec cron(0 * * * *)", "name", ReasonMissing, "name not set"},
		{"exec foo cron()", "cron", ReasonMissing, "cron expression error"},
		{"exec foo cron(0 * * * *", "cron", ReasonMalformed, "cron expression error"},
		{"task", "id", ReasonMissing, "taskid not set"},
	}
	tr := NewTranslator()
	for _, tt := range tests {
		_, err := tr.Translate(tt.line, 1)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Translate(%q) error = %v, want *ValidationError", tt.line, err)
		}
		if ve.Field != tt.field || ve.Reason != tt.reason {
			t.Fatalf("Translate(%q) = %s/%v, want %s/%v", tt.line, ve.Field, ve.Reason, tt.field, tt.reason)
		}
		if ve.Error() != tt.msg {
			t.Fatalf("Translate(%q) message = %q, want %q", tt.line, ve.Error(), tt.msg)
		}
	}
}

func TestTranslateUnknownCommand(t *testing.T) {
	t.Parallel()
	_, err := NewTranslator().Translate("bogus_cmd arg", 1)
	var uc *UnknownCommandError
	if !errors.As(err, &uc) {
		t.Fatalf("error = %v, want *UnknownCommandError", err)
	}
	if uc.Name != "bogus_cmd" {
		t.Fatalf("Name = %q, want bogus_cmd", uc.Name)
	}
	if err.Error() != "command bogus_cmd not found" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestStrictCronCheck(t *testing.T) {
	t.Parallel()
	tr := NewTranslator(WithCronCheck(CheckCron))
	if _, err := tr.Translate("exec foo cron(not a cron) 2", 1); err == nil {
		t.Fatal("strict translator accepted an invalid cron expression")
	}
	if _, err := tr.Translate("exec foo cron(0 */2 * * *) 2", 1); err != nil {
		t.Fatalf("strict translator rejected a valid expression: %v", err)
	}
	if _, err := NewTranslator().Translate("exec foo cron(not a cron)", 1); err != nil {
		t.Fatalf("lenient translator rejected an expression: %v", err)
	}
}

func TestCopyNeverTruncates(t *testing.T) {
	t.Parallel()
	tr := NewTranslator()
	for _, name := range []string{"ok_name", "bad name!", "a;b", "x-1"} {
		r, err := tr.Translate("copy "+name, 1)
		if err != nil {
			continue
		}
		if !ValidName(r.Name) || r.Name != strings.Fields(name)[0] {
			t.Fatalf("copy %q produced name %q", name, r.Name)
		}
	}
}

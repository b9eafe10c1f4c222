package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("hello %d", 1)
	if len(got) != 1 || got[0] != "hello 1" {
		t.Fatalf("captured %v", got)
	}

	SetLogger(nil)
	Logf("muted")
	if len(got) != 1 {
		t.Errorf("nil logger should mute, captured %v", got)
	}
}

func TestDebugf(t *testing.T) {
	orig := Logf
	defer func() {
		Logf = orig
		SetDebug(false)
	}()

	var count int
	SetLogger(func(string, ...interface{}) { count++ })

	Debugf("off")
	if count != 0 {
		t.Errorf("Debugf logged while disabled")
	}

	SetDebug(true)
	if !DebugEnabled() {
		t.Fatal("DebugEnabled() = false after SetDebug(true)")
	}
	Debugf("on")
	if count != 1 {
		t.Errorf("Debugf count = %d, want 1", count)
	}
}

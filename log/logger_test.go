package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogfmtFormatDeterministic(t *testing.T) {
	buf := new(bytes.Buffer)
	l := &logger{h: &swapHandler{h: StreamHandler(buf, LogfmtFormat())}}
	sub := l.New("component", "agent")
	sub.Info("turn started", "turn", 3, "target", "0xabc")

	out := buf.String()
	if !strings.Contains(out, `msg="turn started"`) {
		t.Errorf("missing msg field: %s", out)
	}
	if !strings.Contains(out, "component=agent") {
		t.Errorf("missing bound context: %s", out)
	}
	if !strings.Contains(out, "turn=3") || !strings.Contains(out, "target=0xabc") {
		t.Errorf("missing per-call context: %s", out)
	}
}

func TestLoggerContextInheritance(t *testing.T) {
	buf := new(bytes.Buffer)
	l := &logger{h: &swapHandler{h: StreamHandler(buf, LogfmtFormat())}}
	parent := l.New("a", 1)
	child := parent.New("b", 2)
	child.Warn("hello")

	out := buf.String()
	if !strings.Contains(out, "a=1") || !strings.Contains(out, "b=2") {
		t.Errorf("child logger missing inherited or own context: %s", out)
	}
}

func TestLvlFilterHandler(t *testing.T) {
	buf := new(bytes.Buffer)
	h := LvlFilterHandler(LvlWarn, StreamHandler(buf, LogfmtFormat()))
	l := &logger{h: &swapHandler{h: h}}

	l.Debug("hidden")
	l.Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record should have been filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("error record should have passed: %s", out)
	}
}

func TestOddContextPadded(t *testing.T) {
	buf := new(bytes.Buffer)
	l := &logger{h: &swapHandler{h: StreamHandler(buf, LogfmtFormat())}}
	l.Info("msg", "onlykey")

	if !strings.Contains(buf.String(), "onlykey=MISSING") {
		t.Errorf("expected padded MISSING value, got %s", buf.String())
	}
}

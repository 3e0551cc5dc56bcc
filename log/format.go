package log

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Format renders a Record to bytes.
type Format interface {
	Format(r *Record) []byte
}

type formatFunc func(*Record) []byte

func (f formatFunc) Format(r *Record) []byte { return f(r) }

// TerminalFormat renders records as "time lvl msg key=value ...", the same
// one-line shape the teacher's terminal handler produces.
func TerminalFormat() Format {
	return formatFunc(func(r *Record) []byte {
		b := new(bytes.Buffer)
		fmt.Fprintf(b, "%s [%s] %s", r.Time.Format("2006-01-02T15:04:05.000"), r.Lvl, r.Msg)
		for i := 0; i < len(r.Ctx); i += 2 {
			fmt.Fprintf(b, " %v=%v", r.Ctx[i], formatValue(r.Ctx[i+1]))
		}
		b.WriteByte('\n')
		return b.Bytes()
	})
}

// LogfmtFormat renders records in logfmt, with keys sorted for
// deterministic output (useful when tests assert on emitted lines).
func LogfmtFormat() Format {
	return formatFunc(func(r *Record) []byte {
		b := new(bytes.Buffer)
		fmt.Fprintf(b, "t=%s lvl=%s msg=%q", r.Time.Format("2006-01-02T15:04:05.000"), r.Lvl, r.Msg)
		keys := make([]string, 0, len(r.Ctx)/2)
		values := make(map[string]interface{}, len(r.Ctx)/2)
		for i := 0; i < len(r.Ctx); i += 2 {
			k := fmt.Sprintf("%v", r.Ctx[i])
			keys = append(keys, k)
			values[k] = r.Ctx[i+1]
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, " %s=%v", k, formatValue(values[k]))
		}
		b.WriteByte('\n')
		return b.Bytes()
	})
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// StreamHandler writes formatted records to w.
func StreamHandler(w io.Writer, fmtr Format) Handler {
	return &streamHandler{w: w, fmtr: fmtr}
}

type streamHandler struct {
	w    io.Writer
	fmtr Format
}

func (h *streamHandler) Log(r *Record) error {
	_, err := h.w.Write(h.fmtr.Format(r))
	return err
}

// LvlFilterHandler wraps h, dropping records below maxLvl.
func LvlFilterHandler(maxLvl Level, h Handler) Handler {
	return &lvlFilterHandler{maxLvl: maxLvl, h: h}
}

type lvlFilterHandler struct {
	maxLvl Level
	h      Handler
}

func (h *lvlFilterHandler) Log(r *Record) error {
	if r.Lvl > h.maxLvl {
		return nil
	}
	return h.h.Log(r)
}

// MultiHandler fans a record out to every handler in hs.
func MultiHandler(hs ...Handler) Handler { return multiHandler(hs) }

type multiHandler []Handler

func (hs multiHandler) Log(r *Record) error {
	var firstErr error
	for _, h := range hs {
		if err := h.Log(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

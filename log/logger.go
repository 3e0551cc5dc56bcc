// Package log implements the leveled, key-value structured logger used
// across components: chainreader, explorer, forkexec, store, the LLM
// adapters, and the agent controller all log through a Logger rather than
// fmt/stdlib log.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LvlCrit Level = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
)

func (l Level) String() string {
	switch l {
	case LvlCrit:
		return "crit"
	case LvlError:
		return "error"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Record is a single log event: a message plus alternating key/value context.
type Record struct {
	Time time.Time
	Lvl  Level
	Msg  string
	Ctx  []interface{}
}

// Handler processes a Record, e.g. by writing formatted text to a stream.
type Handler interface {
	Log(r *Record) error
}

// Logger emits leveled records carrying both its own bound context and any
// per-call context, every pair name,value.
type Logger interface {
	New(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

type swapHandler struct {
	mu sync.RWMutex
	h  Handler
}

func (s *swapHandler) Log(r *Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.Log(r)
}

func (s *swapHandler) Swap(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = h
}

var root = &logger{h: &swapHandler{h: StreamHandler(os.Stderr, TerminalFormat())}}

// Root returns the root logger.
func Root() Logger { return root }

// SetRoot swaps the root logger's handler, e.g. to redirect to a file.
func SetRoot(h Handler) { root.h.Swap(h) }

// New creates a new Logger bound to the root logger's handler with the
// given context appended.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{h: l.h, ctx: make([]interface{}, 0, len(l.ctx)+len(ctx))}
	child.ctx = append(child.ctx, l.ctx...)
	child.ctx = append(child.ctx, normalize(ctx)...)
	return child
}

func (l *logger) write(lvl Level, msg string, ctx []interface{}) {
	r := &Record{Time: time.Now(), Lvl: lvl, Msg: msg}
	r.Ctx = make([]interface{}, 0, len(l.ctx)+len(ctx))
	r.Ctx = append(r.Ctx, l.ctx...)
	r.Ctx = append(r.Ctx, normalize(ctx)...)
	l.h.Log(r)
}

func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// normalize pads an odd-length context slice with a placeholder value and
// stringifies non-string keys, mirroring the teacher's tolerant key-value
// logging convention.
func normalize(ctx []interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, "MISSING")
	}
	out := make([]interface{}, len(ctx))
	for i := 0; i < len(ctx); i += 2 {
		if _, ok := ctx[i].(string); !ok {
			out[i] = fmt.Sprintf("%+v", ctx[i])
		} else {
			out[i] = ctx[i]
		}
		out[i+1] = ctx[i+1]
	}
	return out
}

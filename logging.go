package otlpz

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// LevelTrace sits below slog.LevelDebug for very chatty output.
const LevelTrace = slog.LevelDebug - 4

// LevelDirective enables records from packages whose import path starts with
// Module at Level and above. An empty Module is the global directive.
type LevelDirective struct {
	Module string
	Level  slog.Level
	Off    bool
}

// LevelDirectives decides which records are enabled, per package.
type LevelDirectives struct {
	global  *LevelDirective
	modules []LevelDirective
}

// ParseLevelDirectives parses "module=level,module=level,level". The first
// module directive whose prefix matches a record's package wins; otherwise
// the global level applies; with no global level the record is disabled.
// Levels are trace, debug, info, warn, error and off.
func ParseLevelDirectives(s string) (LevelDirectives, error) {
	var d LevelDirectives
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		module, levelText, hasModule := strings.Cut(item, "=")
		if !hasModule {
			module, levelText = "", item
		}
		module = strings.TrimSpace(module)
		level, off, err := parseLevel(strings.TrimSpace(levelText))
		if err != nil {
			return LevelDirectives{}, &ConfigError{Field: "log directives", Value: s, Err: err}
		}

		directive := LevelDirective{Module: module, Level: level, Off: off}
		if module == "" {
			d.global = &directive
			continue
		}
		d.modules = append(d.modules, directive)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, bool, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, false, nil
	case "debug":
		return slog.LevelDebug, false, nil
	case "info":
		return slog.LevelInfo, false, nil
	case "warn", "warning":
		return slog.LevelWarn, false, nil
	case "error":
		return slog.LevelError, false, nil
	case "off", "none":
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("unknown level %q", s)
	}
}

// Enabled reports whether a record at level from module passes.
func (d LevelDirectives) Enabled(module string, level slog.Level) bool {
	for _, m := range d.modules {
		if strings.HasPrefix(module, m.Module) {
			return !m.Off && level >= m.Level
		}
	}
	if d.global != nil {
		return !d.global.Off && level >= d.global.Level
	}
	return false
}

// minLevel is the lowest level any directive enables.
func (d LevelDirectives) minLevel() (slog.Level, bool) {
	var (
		lowest slog.Level
		found  bool
	)
	consider := func(ld LevelDirective) {
		if ld.Off {
			return
		}
		if !found || ld.Level < lowest {
			lowest, found = ld.Level, true
		}
	}
	for _, m := range d.modules {
		consider(m)
	}
	if d.global != nil {
		consider(*d.global)
	}
	return lowest, found
}

// LogHandler is an slog.Handler that filters records by LevelDirectives,
// forwards them to an inner handler and attaches them as events to the span
// carried by the record's context.
type LogHandler struct {
	inner      slog.Handler
	directives LevelDirectives
	attrs      []slog.Attr
	groups     []string
}

// NewLogHandler wraps inner.
func NewLogHandler(inner slog.Handler, directives LevelDirectives) *LogHandler {
	return &LogHandler{inner: inner, directives: directives}
}

// Enabled implements slog.Handler.
func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	lowest, ok := h.directives.minLevel()
	return ok && level >= lowest
}

// Handle implements slog.Handler.
func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.directives.Enabled(moduleOf(r.PC), r.Level) {
		return nil
	}

	var err error
	if h.inner.Enabled(ctx, r.Level) {
		err = h.inner.Handle(ctx, r)
	}

	if span := SpanFromContext(ctx); span != nil {
		attrs := make(map[Tag]string, len(h.attrs)+r.NumAttrs())
		prefix := strings.Join(h.groups, ".")
		for _, a := range h.attrs {
			flattenAttr(attrs, "", a)
		}
		r.Attrs(func(a slog.Attr) bool {
			flattenAttr(attrs, prefix, a)
			return true
		})
		span.RecordLog(r.Level, r.Message, attrs)
	}
	return err
}

// WithAttrs implements slog.Handler.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a = slog.Attr{Key: prefix + "." + a.Key, Value: a.Value}
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func flattenAttr(dst map[Tag]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}

	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			flattenAttr(dst, key, ga)
		}
		return
	}
	if key == "" {
		return
	}
	dst[key] = v.String()
}

// moduleOf returns the import path of the package containing pc.
func moduleOf(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	fn := frame.Function

	// "github.com/a/b.(*T).M" -> "github.com/a/b"
	slash := strings.LastIndexByte(fn, '/')
	if dot := strings.IndexByte(fn[slash+1:], '.'); dot >= 0 {
		return fn[:slash+1+dot]
	}
	return fn
}

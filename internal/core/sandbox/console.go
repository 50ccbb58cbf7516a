package sandbox

import (
	"encoding/json"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

const circular = "[Circular]"

// stackTracer is implemented by errors that carry a stack trace.
type stackTracer interface {
	Stack() string
}

// FormatArgs renders console arguments the way the surface reports them:
// strings verbatim, errors as message and stack, functions as a bracketed
// name and everything else as JSON with cycles replaced by "[Circular]".
// Arguments are separated by a single space.
func FormatArgs(args ...any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = Serialize(arg)
	}
	return strings.Join(parts, " ")
}

// Serialize renders a single console argument.
func Serialize(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case error:
		return formatError(x)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return funcName(rv)
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v)
	}

	w := walker{seen: make(map[uintptr]bool)}
	data, err := json.Marshal(w.value(rv))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func formatError(err error) string {
	if st, ok := err.(stackTracer); ok {
		if stack := st.Stack(); stack != "" {
			return err.Error() + "\n" + stack
		}
	}
	return err.Error()
}

func funcName(rv reflect.Value) string {
	if rv.IsNil() {
		return "null"
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "[Function: anonymous]"
	}
	name := fn.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if strings.HasPrefix(name, "func") {
		name = "anonymous"
	}
	return "[Function: " + name + "]"
}

// walker converts arbitrary values into JSON-safe trees. seen holds the
// references on the current path from the root, so shared but acyclic
// references are rendered in full.
type walker struct {
	seen map[uintptr]bool
}

func (w walker) value(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return w.value(rv.Elem())

	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return w.guard(rv.Pointer(), func() any { return w.value(rv.Elem()) })

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		return w.guard(rv.Pointer(), func() any {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[fmt.Sprint(iter.Key().Interface())] = w.value(iter.Value())
			}
			return out
		})

	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		return w.guard(rv.Pointer(), func() any { return w.list(rv) })

	case reflect.Array:
		return w.list(rv)

	case reflect.Struct:
		return w.object(rv)

	case reflect.Func:
		return funcName(rv)

	case reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("[%s]", rv.Type())

	default:
		if rv.CanInterface() {
			if e, ok := rv.Interface().(error); ok {
				return formatError(e)
			}
			return rv.Interface()
		}
		return fmt.Sprint(rv)
	}
}

func (w walker) guard(ptr uintptr, fn func() any) any {
	if w.seen[ptr] {
		return circular
	}
	w.seen[ptr] = true
	defer delete(w.seen, ptr)
	return fn()
}

func (w walker) list(rv reflect.Value) any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = w.value(rv.Index(i))
	}
	return out
}

func (w walker) object(rv reflect.Value) any {
	typ := rv.Type()
	out := make(map[string]any, typ.NumField())
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = w.value(rv.Field(i))
	}
	return out
}

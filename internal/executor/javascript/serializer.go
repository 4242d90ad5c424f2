package javascript

import (
	"strings"

	"github.com/dop251/goja"
)

const (
	windowPlaceholder   = "[window object]"
	documentPlaceholder = "[document object]"
	circularMarker      = "[Circular]"
	unserializable      = "[unserializable value]"
)

// nodeProbeSource classifies DOM-like values: it returns 9 for a document,
// the outerHTML string for an element and null for anything else.
const nodeProbeSource = `(function (v) {
	var t = v.nodeType;
	if (t === 9) return 9;
	if (t === 1 && typeof v.outerHTML === "string") return v.outerHTML;
	return null;
})`

// Serializer converts JS values captured by console.log into display text.
//
// It holds the VM's original JSON.stringify and String builtins, captured
// before any snippet code runs, so a snippet that reassigns those globals
// cannot change how its own output is rendered. Property reads on snippet
// objects go through callables so a throwing getter surfaces as an error.
type Serializer struct {
	vm        *goja.Runtime
	global    *goja.Object
	stringify goja.Callable
	toString  goja.Callable
	probe     goja.Callable
}

// NewSerializer captures the builtins it needs from vm. It must be called
// before any untrusted code runs on vm.
func NewSerializer(vm *goja.Runtime) *Serializer {
	s := &Serializer{vm: vm, global: vm.GlobalObject()}
	if jsonObj, ok := vm.Get("JSON").(*goja.Object); ok {
		s.stringify, _ = goja.AssertFunction(jsonObj.Get("stringify"))
	}
	s.toString, _ = goja.AssertFunction(vm.Get("String"))
	if probe, err := vm.RunString(nodeProbeSource); err == nil {
		s.probe, _ = goja.AssertFunction(probe)
	}
	return s
}

// Serialize renders v. It never panics.
func (s *Serializer) Serialize(v goja.Value) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = s.Coerce(v)
		}
	}()

	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return s.Coerce(v)
	}
	if obj == s.global {
		return windowPlaceholder
	}
	if text, ok := s.domLike(obj); ok {
		return text
	}
	if s.stringify == nil {
		return s.Coerce(v)
	}

	// visited lives for this call only.
	visited := make(map[*goja.Object]struct{})
	replacer := s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		val := call.Argument(1)
		o, ok := val.(*goja.Object)
		if !ok {
			return val
		}
		if _, isFunc := goja.AssertFunction(o); isFunc {
			return val
		}
		if _, seen := visited[o]; seen {
			return s.vm.ToValue(circularMarker)
		}
		visited[o] = struct{}{}
		return val
	})

	res, err := s.stringify(goja.Undefined(), obj, replacer, s.vm.ToValue(2))
	if err != nil || res == nil || goja.IsUndefined(res) {
		return s.Coerce(v)
	}
	return res.String()
}

// Coerce applies plain string conversion, as JS String(v) would.
// It never panics.
func (s *Serializer) Coerce(v goja.Value) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = unserializable
		}
	}()

	if v == nil {
		return "undefined"
	}
	if s.toString == nil {
		return v.String()
	}
	res, err := s.toString(goja.Undefined(), v)
	if err != nil {
		return unserializable
	}
	return res.String()
}

// domLike recognises document and element shaped objects.
func (s *Serializer) domLike(obj *goja.Object) (string, bool) {
	if s.probe == nil {
		return "", false
	}
	res, err := s.probe(goja.Undefined(), obj)
	if err != nil || res == nil || goja.IsNull(res) {
		return "", false
	}
	if html, ok := res.Export().(string); ok {
		head, _, _ := strings.Cut(html, ">")
		return head + "...>", true
	}
	return documentPlaceholder, true
}

package javascript

import (
	"strings"

	"github.com/dop251/goja"
)

// console collects the lines a snippet logs. Each call appends exactly one line.
type console struct {
	ser   *Serializer
	lines []string
}

func newConsole(ser *Serializer) *console {
	return &console{ser: ser}
}

// bind builds the JS console object handed to the snippet.
func (c *console) bind(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("log", c.log)
	_ = obj.Set("error", c.prefixed("Error: "))
	_ = obj.Set("warn", c.prefixed("Warning: "))
	_ = obj.Set("info", c.prefixed("Info: "))
	return obj
}

func (c *console) log(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		if isObjectType(arg) {
			parts[i] = c.ser.Serialize(arg)
		} else {
			parts[i] = c.ser.Coerce(arg)
		}
	}
	c.append(strings.Join(parts, " "))
	return goja.Undefined()
}

func (c *console) prefixed(prefix string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = c.ser.Coerce(arg)
		}
		c.append(prefix + strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (c *console) append(line string) {
	c.lines = append(c.lines, line)
}

// isObjectType reports whether typeof v would be "object".
func isObjectType(v goja.Value) bool {
	if v == nil {
		return false
	}
	if goja.IsNull(v) {
		return true
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	_, isFunc := goja.AssertFunction(obj)
	return !isFunc
}

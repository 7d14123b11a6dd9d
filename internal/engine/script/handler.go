// Package script evaluates onclick and javascript: snippets from board
// markup in a sandboxed VM and reports which navigation they trigger.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// Timeout bounds a single evaluation
const Timeout = 250 * time.Millisecond

// ErrNoAction is returned when a snippet neither calls a function nor navigates
var ErrNoAction = errors.New("script has no navigation call")

// Call is one captured function invocation. Arguments are stringified;
// objects (such as this) become "".
type Call struct {
	Name string
	Args []string
}

// Arg returns argument i or ""
func (c Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Result is what evaluating a snippet did
type Result struct {
	Calls []Call
	// Href is the last value assigned to location.href, or passed to location.assign/replace.
	Href string
}

// Find returns the first call to name
func (r *Result) Find(name string) (Call, bool) {
	for _, c := range r.Calls {
		if c.Name == name {
			return c, true
		}
	}
	return Call{}, false
}

// First returns the first captured call
func (r *Result) First() (Call, bool) {
	if len(r.Calls) == 0 {
		return Call{}, false
	}
	return r.Calls[0], true
}

var (
	callPattern = regexp.MustCompile(`([A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*)\s*\(`)
	keywords    = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "function": true,
		"return": true, "typeof": true, "catch": true, "with": true, "void": true,
	}
)

// Evaluate runs src with every function it calls replaced by a recorder
func Evaluate(src string) (*Result, error) {
	src = strings.TrimSpace(src)
	if len(src) >= len("javascript:") && strings.EqualFold(src[:len("javascript:")], "javascript:") {
		src = src[len("javascript:"):]
	}
	if strings.TrimSpace(src) == "" {
		return nil, ErrNoAction
	}

	vm := goja.New()
	res := &Result{}

	location := vm.NewObject()
	_ = location.Set("href", "")
	navigate := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			res.Href = call.Argument(0).String()
		}
		return goja.Undefined()
	}
	_ = location.Set("assign", navigate)
	_ = location.Set("replace", navigate)

	window := vm.NewObject()
	_ = window.Set("location", location)
	document := vm.NewObject()
	_ = document.Set("location", location)

	global := vm.GlobalObject()
	_ = global.Set("location", location)
	_ = global.Set("window", window)
	_ = global.Set("self", window)
	_ = global.Set("top", window)
	_ = global.Set("parent", window)
	_ = global.Set("document", document)

	for _, m := range callPattern.FindAllStringSubmatch(src, -1) {
		name := m[1]
		if keywords[name] || isLocationMethod(name) {
			continue
		}
		if err := stub(vm, global, name, res); err != nil {
			return nil, err
		}
	}

	timer := time.AfterFunc(Timeout, func() { vm.Interrupt("timeout") })
	defer timer.Stop()

	if _, err := vm.RunString("(function(){\n" + src + "\n}).call(this)"); err != nil {
		// A snippet may fail after its call was recorded, e.g. on a DOM lookup.
		if len(res.Calls) == 0 && hrefOf(location) == "" && res.Href == "" {
			return nil, fmt.Errorf("failed to evaluate script: %w", err)
		}
	}

	if h := hrefOf(location); h != "" {
		res.Href = h
	}
	if len(res.Calls) == 0 && res.Href == "" {
		return nil, ErrNoAction
	}
	return res, nil
}

// stub installs a recorder at the dotted path name, creating objects on the way
func stub(vm *goja.Runtime, global *goja.Object, name string, res *Result) error {
	parts := strings.Split(name, ".")
	cur := global
	for _, part := range parts[:len(parts)-1] {
		v := cur.Get(part)
		if obj, ok := v.(*goja.Object); ok {
			cur = obj
			continue
		}
		obj := vm.NewObject()
		if err := cur.Set(part, obj); err != nil {
			return fmt.Errorf("failed to define %s: %w", name, err)
		}
		cur = obj
	}

	recorder := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = stringify(a)
		}
		res.Calls = append(res.Calls, Call{Name: name, Args: args})
		return goja.Undefined()
	}
	if err := cur.Set(parts[len(parts)-1], recorder); err != nil {
		return fmt.Errorf("failed to define %s: %w", name, err)
	}
	return nil
}

func stringify(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if _, ok := v.(*goja.Object); ok {
		return ""
	}
	return v.String()
}

func hrefOf(location *goja.Object) string {
	return stringify(location.Get("href"))
}

func isLocationMethod(name string) bool {
	return strings.HasSuffix(name, "location.assign") ||
		strings.HasSuffix(name, "location.replace") ||
		name == "location.reload"
}

package sandbox

import (
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// DOM is the minimal document tree a vendor loader needs: a head to append
// script tags to and a body.
type DOM struct {
	root *Element
	head *Element
	body *Element
	mu   sync.RWMutex

	// JS wrappers created by document.createElement, owned by the loop
	elements map[*goja.Object]*Element
}

// Element represents a DOM element
type Element struct {
	TagName    string
	Attributes map[string]string
	Children   []*Element
	Parent     *Element
}

// NewDOM creates an empty document with head and body
func NewDOM() *DOM {
	d := &DOM{
		root:     newElement("html"),
		head:     newElement("head"),
		body:     newElement("body"),
		elements: make(map[*goja.Object]*Element),
	}
	d.root.AddElement(d.head)
	d.root.AddElement(d.body)
	return d
}

func newElement(tag string) *Element {
	return &Element{
		TagName:    strings.ToLower(tag),
		Attributes: make(map[string]string),
	}
}

// Query finds elements by tag name
func (d *DOM) Query(tag string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.findByTag(d.root, tag)
}

// GetAttribute retrieves attribute value
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[strings.ToLower(name)]
}

// SetAttribute sets attribute value
func (e *Element) SetAttribute(name, value string) {
	e.Attributes[strings.ToLower(name)] = value
}

// AddElement adds a child element
func (e *Element) AddElement(child *Element) {
	if child.Parent != nil {
		child.Remove()
	}
	child.Parent = e
	e.Children = append(e.Children, child)
}

// Remove removes element from parent
func (e *Element) Remove() {
	if e.Parent == nil {
		return
	}
	children := e.Parent.Children[:0]
	for _, child := range e.Parent.Children {
		if child != e {
			children = append(children, child)
		}
	}
	e.Parent.Children = children
	e.Parent = nil
}

func (d *DOM) findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, d.findByTag(child, tag)...)
	}
	return result
}

// Document returns the runtime's document tree
func (r *Runtime) Document() *DOM {
	return r.dom
}

// installDocument exposes document.createElement, document.head and
// document.body to scripts.
func (r *Runtime) installDocument() {
	document := r.vm.NewObject()
	document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return r.wrapElement(newElement(call.Argument(0).String()))
	})
	document.Set("head", r.wrapElement(r.dom.head))
	document.Set("body", r.wrapElement(r.dom.body))
	document.Set("documentElement", r.wrapElement(r.dom.root))
	r.vm.Set("document", document)
}

func (r *Runtime) wrapElement(elem *Element) *goja.Object {
	obj := r.vm.NewObject()
	obj.Set("tagName", strings.ToUpper(elem.TagName))
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		r.dom.mu.Lock()
		elem.SetAttribute(call.Argument(0).String(), call.Argument(1).String())
		r.dom.mu.Unlock()
		return goja.Undefined()
	})
	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		r.dom.mu.RLock()
		defer r.dom.mu.RUnlock()
		value, ok := elem.Attributes[strings.ToLower(call.Argument(0).String())]
		if !ok {
			return goja.Null()
		}
		return r.vm.ToValue(value)
	})
	obj.Set("appendChild", r.appendChild(elem))
	obj.Set("remove", func(goja.FunctionCall) goja.Value {
		r.dom.mu.Lock()
		elem.Remove()
		r.dom.mu.Unlock()
		return goja.Undefined()
	})

	r.dom.elements[obj] = elem
	return obj
}

func (r *Runtime) appendChild(parent *Element) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		obj := call.Argument(0).ToObject(r.vm)
		child, ok := r.dom.elements[obj]
		if !ok {
			panic(r.vm.NewTypeError("appendChild: parameter is not a node"))
		}

		r.dom.mu.Lock()
		parent.AddElement(child)
		r.dom.mu.Unlock()

		if child.TagName == "script" {
			r.loadScript(obj, child)
		}
		return obj
	}
}

// loadScript fetches and runs an attached script tag, then fires onload or
// onerror. Both callbacks are asynchronous as in a browser.
func (r *Runtime) loadScript(obj *goja.Object, elem *Element) {
	src := elem.GetAttribute("src")
	if src == "" {
		if v := obj.Get("src"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			src = v.String()
		}
	}
	if src == "" {
		return
	}

	if !r.filter.AllowRequest(src) {
		r.logger.Debug("Script request blocked", zap.String("url", src))
		go r.submit(func() { r.settle(obj, "error") })
		return
	}

	go func() {
		code, err := r.fetcher.Fetch(r.ctx, src)
		r.submit(func() {
			if err != nil {
				r.logger.Warn("Script fetch failed", zap.String("url", src), zap.Error(err))
				r.settle(obj, "error")
				return
			}
			// A throwing script still fires load, matching browsers.
			if _, err := r.vm.RunScript(src, code); err != nil {
				r.logger.Warn("Script raised an exception", zap.String("url", src), zap.Error(r.evalError(err)))
			}
			r.settle(obj, "load")
		})
	}()
}

// settle fires the final event of a script tag and drops its wrapper. A
// script element runs once, so it cannot be appended again afterwards.
func (r *Runtime) settle(obj *goja.Object, event string) {
	r.dispatch(obj, event)
	delete(r.dom.elements, obj)
}

func (r *Runtime) dispatch(obj *goja.Object, event string) {
	handler, ok := goja.AssertFunction(obj.Get("on" + event))
	if !ok {
		return
	}

	ev := r.vm.NewObject()
	ev.Set("type", event)
	ev.Set("target", obj)
	if _, err := handler(obj, ev); err != nil {
		r.logger.Warn("Event handler failed", zap.String("event", event), zap.Error(r.evalError(err)))
	}
}

package dap

const startHandle = 1000

// handlesMap maps arbitrary values to unique sequential ids.
// This provides convenient abstraction of references, offering
// opacity and allowing simplification of complex identifiers.
// Based on
// https://github.com/microsoft/vscode-debugadapter-node/blob/master/adapter/src/handles.ts
type handlesMap struct {
	nextHandle  int
	handleToVal map[int]interface{}
}

func newHandlesMap() *handlesMap {
	return &handlesMap{startHandle, make(map[int]interface{})}
}

func (hs *handlesMap) reset() {
	hs.nextHandle = startHandle
	hs.handleToVal = make(map[int]interface{})
}

func (hs *handlesMap) create(value interface{}) int {
	next := hs.nextHandle
	hs.nextHandle++
	hs.handleToVal[next] = value
	return next
}

func (hs *handlesMap) get(handle int) (interface{}, bool) {
	v, ok := hs.handleToVal[handle]
	return v, ok
}

// variablesHandlesMap hands out references to the inames of variables
// with children. Asking twice for the same iname returns the same
// reference.
type variablesHandlesMap struct {
	m       *handlesMap
	byIName map[string]int
}

func newVariablesHandlesMap() *variablesHandlesMap {
	return &variablesHandlesMap{newHandlesMap(), make(map[string]int)}
}

func (hs *variablesHandlesMap) create(iname string) int {
	if ref, ok := hs.byIName[iname]; ok {
		return ref
	}
	ref := hs.m.create(iname)
	hs.byIName[iname] = ref
	return ref
}

func (hs *variablesHandlesMap) get(handle int) (string, bool) {
	v, ok := hs.m.get(handle)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (hs *variablesHandlesMap) reset() {
	hs.m.reset()
	hs.byIName = make(map[string]int)
}

// Package heap implements the JVM's object heap: indexed arenas for loaded
// classes, objects, arrays, and interned strings, all addressed by stable
// numeric handles. Objects live for the life of the process — there is no
// collector, matching the single-process, no-GC execution model.
package heap

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/value"
)

// ClassID identifies a loaded class, array pseudo-class, or primitive
// pseudo-class.
type ClassID = uint64

// NativeMetaValue is the opaque per-instance side table native code uses to
// attach host-only state to a JVM object (a pointer address returned by
// Unsafe.allocateMemory; the numeric class id on a java.lang.Class mirror).
// It is distinct from Java-visible fields.
type NativeMetaValue struct {
	Text    string
	Numeric int64
	IsText  bool
}

// ObjectInstance is a single heap-allocated Java object.
type ObjectInstance struct {
	ClassID    ClassID
	Fields     map[string]value.Value
	NativeMeta map[string]NativeMetaValue
}

// ArrayInstance is a single heap-allocated Java array.
type ArrayInstance struct {
	ElementKind value.Kind // primitive kind, or ObjectRef for reference arrays
	ElementType string     // class name of the element type when ElementKind == ObjectRef/ArrayRef
	Cells       []value.Value
}

// ClassEntry describes a loaded class, array pseudo-class, or primitive
// pseudo-class.
type ClassEntry struct {
	Name            string
	AccessFlags     uint16
	ID              ClassID
	SuperclassID    ClassID // 0 means "no superclass" (java/lang/Object or a primitive)
	HasSuperclass   bool
	Interfaces      []string
	IsArrayType     bool
	IsPrimitiveType bool
	Statics         map[string]value.Value
	ClassObjectID   uint64 // ObjectID of the java/lang/Class mirror
	Initialized     bool
}

// Heap is the single owner of every loaded class, allocated object, array,
// and interned string. All cross-references are plain numeric ids — never
// pointers — so the Heap can be passed around and stepped exclusively by the
// interpreter without aliasing concerns.
type Heap struct {
	classes    []*ClassEntry
	byName     map[string]ClassID
	objects    map[uint64]*ObjectInstance
	arrays     map[uint64]*ArrayInstance
	interned   map[string]uint64
	nextID     uint64
	MainThread uint64
}

// New creates an empty Heap. Id 0 is reserved so that a zero-valued
// value.Value never aliases a real allocation (it reads as null).
func New() *Heap {
	return &Heap{
		byName:   make(map[string]ClassID),
		objects:  make(map[uint64]*ObjectInstance),
		arrays:   make(map[uint64]*ArrayInstance),
		interned: make(map[string]uint64),
		nextID:   1,
	}
}

func (h *Heap) allocID() uint64 {
	id := h.nextID
	h.nextID++
	return id
}

// LookupClass returns the ClassID registered for name, if any.
func (h *Heap) LookupClass(name string) (ClassID, bool) {
	id, ok := h.byName[name]
	return id, ok
}

// Class returns the ClassEntry for id. Panics if id is not a registered
// class — callers resolve through ClassRegistry first.
func (h *Heap) Class(id ClassID) *ClassEntry {
	for _, c := range h.classes {
		if c.ID == id {
			return c
		}
	}
	panic(fmt.Sprintf("heap: class id %d not registered", id))
}

// RegisterClass appends a new ClassEntry and indexes it by name. The caller
// supplies the id (allocated via AllocClassID, which draws from the same
// counter as NewObjectID, so mirror objects and class ids share one id space).
func (h *Heap) RegisterClass(entry *ClassEntry) {
	h.classes = append(h.classes, entry)
	h.byName[entry.Name] = entry.ID
}

// NewObjectID allocates a fresh handle shared by the Object/Array/Class id
// space, and stores obj under it.
func (h *Heap) NewObjectID(obj *ObjectInstance) uint64 {
	id := h.allocID()
	h.objects[id] = obj
	return id
}

// NewArrayID allocates a fresh handle and stores arr under it.
func (h *Heap) NewArrayID(arr *ArrayInstance) uint64 {
	id := h.allocID()
	h.arrays[id] = arr
	return id
}

// AllocClassID reserves an id for a class entry that is about to be
// registered (used so the entry's mirror object can reference it, and vice
// versa, before either is fully constructed).
func (h *Heap) AllocClassID() ClassID { return h.allocID() }

// Object returns the ObjectInstance for id, or (nil, false) if unallocated.
func (h *Heap) Object(id uint64) (*ObjectInstance, bool) {
	obj, ok := h.objects[id]
	return obj, ok
}

// Array returns the ArrayInstance for id, or (nil, false) if unallocated.
func (h *Heap) Array(id uint64) (*ArrayInstance, bool) {
	arr, ok := h.arrays[id]
	return arr, ok
}

// Intern returns the ObjectID of the interned java/lang/String for s,
// allocating and registering one via newString if this is the first time s
// has been interned.
func (h *Heap) Intern(s string, newString func() *ObjectInstance) uint64 {
	if id, ok := h.interned[s]; ok {
		return id
	}
	id := h.NewObjectID(newString())
	h.interned[s] = id
	return id
}

// InternedID returns the ObjectID already interned for s, if any.
func (h *Heap) InternedID(s string) (uint64, bool) {
	id, ok := h.interned[s]
	return id, ok
}

package classloader

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

const objectClassName = "java/lang/Object"

// bootstrapClasses lists library classes the runtime backs with native
// methods (see pkg/nativebridge) rather than class-file bytes. A caller may
// still supply real bytes for any of these via Classpath.AddClass/AddJar —
// Classpath.Find is always tried first — but when it hasn't, loadUserClass
// synthesizes a minimal entry rooted at java/lang/Object so that `new`,
// static dispatch, and field/metadata storage all work normally.
var bootstrapClasses = map[string]bool{
	"java/lang/String":        true,
	"java/lang/Integer":       true,
	"java/lang/Long":          true,
	"java/lang/Double":        true,
	"java/lang/Float":         true,
	"java/lang/Short":         true,
	"java/lang/Byte":          true,
	"java/lang/Character":     true,
	"java/lang/Boolean":       true,
	"java/lang/Math":          true,
	"java/lang/System":        true,
	"java/io/PrintStream":     true,
	"java/lang/StringBuilder": true,
	"java/util/ArrayList":     true,
	"java/util/HashMap":       true,
	"java/lang/Thread":        true,
}

// throwableSupertypes names the exception and error classes the interpreter
// itself raises (pkg/vm/exception.go's throwNew call sites) that have no
// native-method surface and so aren't bootstrapClasses entries. Mapping each
// to its real JDK superclass means a class never supplied on the classpath
// still links into a real Throwable chain, so a catch clause written against
// a supertype (catch (RuntimeException e), catch (Exception e)) matches a
// thrown subtype exactly the way javac-compiled bytecode expects.
var throwableSupertypes = map[string]string{
	"java/lang/Throwable":                       objectClassName,
	"java/lang/Exception":                       "java/lang/Throwable",
	"java/lang/RuntimeException":                "java/lang/Exception",
	"java/lang/Error":                           "java/lang/Throwable",
	"java/lang/NullPointerException":            "java/lang/RuntimeException",
	"java/lang/ArithmeticException":             "java/lang/RuntimeException",
	"java/lang/ClassCastException":              "java/lang/RuntimeException",
	"java/lang/IllegalArgumentException":        "java/lang/RuntimeException",
	"java/lang/IllegalStateException":           "java/lang/RuntimeException",
	"java/lang/IndexOutOfBoundsException":        "java/lang/RuntimeException",
	"java/lang/ArrayIndexOutOfBoundsException":   "java/lang/IndexOutOfBoundsException",
	"java/lang/StringIndexOutOfBoundsException":  "java/lang/IndexOutOfBoundsException",
	"java/lang/NegativeArraySizeException":       "java/lang/RuntimeException",
	"java/lang/UnsupportedOperationException":    "java/lang/RuntimeException",
	"java/lang/LinkageError":                     "java/lang/Error",
	"java/lang/IncompatibleClassChangeError":     "java/lang/LinkageError",
	"java/lang/NoSuchMethodError":                "java/lang/IncompatibleClassChangeError",
	"java/lang/NoSuchFieldError":                 "java/lang/IncompatibleClassChangeError",
	"java/lang/AbstractMethodError":              "java/lang/IncompatibleClassChangeError",
	"java/lang/NoClassDefFoundError":             "java/lang/LinkageError",
	"java/lang/UnsatisfiedLinkError":             "java/lang/LinkageError",
	"java/lang/VirtualMachineError":              "java/lang/Error",
	"java/lang/StackOverflowError":               "java/lang/VirtualMachineError",
}

var primitiveSigils = map[byte]string{
	'B': "byte",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
	'C': "char",
	'Z': "boolean",
}

// Registry is the ClassRegistry of spec §4.2: it loads, links, and
// initializes classes on demand and records the superclass/interface
// topology needed for assignability and method resolution.
type Registry struct {
	Heap      *heap.Heap
	Classpath *Classpath

	// RunClinit invokes a class's <clinit> method if it has one. It is
	// wired up by pkg/vm after construction (the registry itself must not
	// import the interpreter, to avoid an import cycle), and is a no-op if
	// left nil — useful for registry-only unit tests.
	RunClinit func(classID heap.ClassID) error
}

// NewRegistry creates a Registry backed by h and cp.
func NewRegistry(h *heap.Heap, cp *Classpath) *Registry {
	return &Registry{Heap: h, Classpath: cp}
}

// Load resolves name to a ClassID, loading and linking it (and its
// superclass chain) on first demand, and initializing it if requested.
func (r *Registry) Load(name string, initialize bool) (heap.ClassID, error) {
	if id, ok := r.Heap.LookupClass(name); ok {
		if initialize {
			if err := r.initialize(id); err != nil {
				return 0, err
			}
		}
		return id, nil
	}

	var entry *heap.ClassEntry
	var err error
	switch {
	case len(name) > 0 && name[0] == '[':
		entry, err = r.loadArrayClass(name)
	case len(name) == 1 && primitiveSigils[name[0]] != "":
		entry = r.loadPrimitiveClass(name)
	default:
		entry, err = r.loadUserClass(name)
	}
	if err != nil {
		return 0, err
	}

	r.Heap.RegisterClass(entry)
	r.createClassMirror(entry)

	if initialize {
		if err := r.initialize(entry.ID); err != nil {
			return 0, err
		}
	}
	return entry.ID, nil
}

func (r *Registry) loadArrayClass(name string) (*heap.ClassEntry, error) {
	objID, err := r.Load(objectClassName, false)
	if err != nil {
		return nil, fmt.Errorf("loading array pseudo-class %s: %w", name, err)
	}
	return &heap.ClassEntry{
		Name:          name,
		ID:            r.Heap.AllocClassID(),
		SuperclassID:  objID,
		HasSuperclass: true,
		Interfaces:    []string{"java/io/Serializable", "java/lang/Cloneable"},
		IsArrayType:   true,
		Statics:       make(map[string]value.Value),
		Initialized:   true, // arrays have no <clinit>
	}, nil
}

func (r *Registry) loadPrimitiveClass(name string) *heap.ClassEntry {
	return &heap.ClassEntry{
		Name:            primitiveSigils[name[0]],
		ID:              r.Heap.AllocClassID(),
		IsPrimitiveType: true,
		Statics:         make(map[string]value.Value),
		Initialized:     true, // primitives have no <clinit>
	}
}

func (r *Registry) loadUserClass(name string) (*heap.ClassEntry, error) {
	cf, ok := r.Classpath.Find(name)
	if !ok {
		if name == objectClassName {
			// java/lang/Object is the root of every hierarchy; the runtime
			// synthesizes it even when the caller never supplied its class
			// bytes, since the native-method library that would normally
			// back it is out of scope for this core.
			return &heap.ClassEntry{
				Name:        name,
				ID:          r.Heap.AllocClassID(),
				AccessFlags: classfile.AccPublic | classfile.AccSuper,
				Statics:     make(map[string]value.Value),
			}, nil
		}
		if bootstrapClasses[name] {
			objID, err := r.Load(objectClassName, false)
			if err != nil {
				return nil, fmt.Errorf("loading bootstrap class %s: %w", name, err)
			}
			return &heap.ClassEntry{
				Name:          name,
				ID:            r.Heap.AllocClassID(),
				AccessFlags:   classfile.AccPublic | classfile.AccSuper,
				SuperclassID:  objID,
				HasSuperclass: true,
				Statics:       make(map[string]value.Value),
			}, nil
		}
		if super, ok := throwableSupertypes[name]; ok {
			superID, err := r.Load(super, false)
			if err != nil {
				return nil, fmt.Errorf("loading synthesized throwable %s: %w", name, err)
			}
			return &heap.ClassEntry{
				Name:          name,
				ID:            r.Heap.AllocClassID(),
				AccessFlags:   classfile.AccPublic | classfile.AccSuper,
				SuperclassID:  superID,
				HasSuperclass: true,
				Statics:       make(map[string]value.Value),
			}, nil
		}
		return nil, &NoClassDefFoundError{ClassName: name}
	}

	entry := &heap.ClassEntry{
		Name:        name,
		ID:          r.Heap.AllocClassID(),
		AccessFlags: cf.AccessFlags,
		Interfaces:  cf.InterfaceNames(),
		Statics:     make(map[string]value.Value),
	}

	if super := cf.SuperClassName(); super != "" {
		superID, err := r.Load(super, false)
		if err != nil {
			return nil, fmt.Errorf("loading superclass %s of %s: %w", super, name, err)
		}
		entry.SuperclassID = superID
		entry.HasSuperclass = true
	}

	for _, f := range cf.Fields {
		if f.AccessFlags&classfile.AccStatic != 0 {
			entry.Statics[f.Name] = defaultValueForDescriptor(f.Descriptor)
		}
	}

	return entry, nil
}

func (r *Registry) createClassMirror(entry *heap.ClassEntry) {
	mirror := &heap.ObjectInstance{
		ClassID:    entry.ID,
		Fields:     make(map[string]value.Value),
		NativeMeta: make(map[string]heap.NativeMetaValue),
	}
	mirror.NativeMeta["class_id"] = heap.NativeMetaValue{Numeric: int64(entry.ID)}
	mirror.NativeMeta["class_name"] = heap.NativeMetaValue{Text: entry.Name, IsText: true}
	entry.ClassObjectID = r.Heap.NewObjectID(mirror)
}

// initialize runs a class's <clinit>, recursing into its superclass first.
// The initialized flag is set before <clinit> runs so a re-entrant load
// during <clinit> (e.g. the class constructs an instance of itself) doesn't
// recurse infinitely.
func (r *Registry) initialize(id heap.ClassID) error {
	entry := r.Heap.Class(id)
	if entry.Initialized {
		return nil
	}
	if entry.HasSuperclass {
		if err := r.initialize(entry.SuperclassID); err != nil {
			return err
		}
	}
	entry.Initialized = true
	if r.RunClinit != nil {
		if err := r.RunClinit(id); err != nil {
			return err
		}
	}
	return nil
}

// IsAssignableFrom walks subID's superclass chain (checking declared name
// and every direct interface at each step) for equality with superName,
// terminating at java/lang/Object.
func (r *Registry) IsAssignableFrom(superName string, subID heap.ClassID) bool {
	return r.isAssignableFromVisited(superName, subID, make(map[heap.ClassID]bool))
}

func (r *Registry) isAssignableFromVisited(superName string, subID heap.ClassID, visited map[heap.ClassID]bool) bool {
	if visited[subID] {
		return false
	}
	visited[subID] = true

	entry := r.Heap.Class(subID)
	if entry.Name == superName {
		return true
	}
	for _, ifName := range entry.Interfaces {
		if ifName == superName {
			return true
		}
		if ifID, ok := r.Heap.LookupClass(ifName); ok && r.isAssignableFromVisited(superName, ifID, visited) {
			return true
		}
	}
	if entry.HasSuperclass {
		return r.isAssignableFromVisited(superName, entry.SuperclassID, visited)
	}
	return false
}

func defaultValueForDescriptor(descriptor string) value.Value {
	if len(descriptor) == 0 {
		return value.NullValue()
	}
	switch descriptor[0] {
	case 'L', '[':
		return value.NullValue()
	case 'J':
		return value.LongValue(0)
	case 'F':
		return value.FloatValue(0)
	case 'D':
		return value.DoubleValue(0)
	case 'C':
		return value.CharValue(0)
	case 'Z':
		return value.BooleanValue(false)
	case 'B':
		return value.ByteValue(0)
	case 'S':
		return value.ShortValue(0)
	default:
		return value.IntValue(0)
	}
}

// NoClassDefFoundError signals that name could not be resolved on the
// classpath (JVMS "NoClassDefFoundError").
type NoClassDefFoundError struct {
	ClassName string
}

func (e *NoClassDefFoundError) Error() string {
	return fmt.Sprintf("NoClassDefFoundError: %s", e.ClassName)
}

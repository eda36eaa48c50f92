// Package classloader implements the Classpath (name-addressable store of
// class bytes and native-method handlers) and the ClassRegistry (on-demand
// loading, linking, and <clinit> initialization).
package classloader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// NativeFunc is the Go-side implementation of a native method, keyed by its
// mangled name (see Classpath.AddNativeMethod).
type NativeFunc func(args []uint64) (uint64, error)

// Classpath is the name-addressable store of parsed class files and
// registered native-method handlers backing ClassRegistry lookups.
type Classpath struct {
	classBytes map[string][]byte
	parsed     map[string]*classfile.ClassFile
	natives    map[string]NativeFunc
}

// NewClasspath creates an empty Classpath.
func NewClasspath() *Classpath {
	return &Classpath{
		classBytes: make(map[string][]byte),
		parsed:     make(map[string]*classfile.ClassFile),
		natives:    make(map[string]NativeFunc),
	}
}

// AddClass registers a single .class file's raw bytes. The class's own
// binary name (read from the this_class constant pool entry) determines the
// key it's looked up under; the file is parsed eagerly to fail fast on
// malformed input.
func (cp *Classpath) AddClass(data []byte) error {
	cf, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("classpath: adding class: %w", err)
	}
	name, err := cf.ClassName()
	if err != nil {
		return fmt.Errorf("classpath: adding class: %w", err)
	}
	cp.classBytes[name] = data
	cp.parsed[name] = cf
	return nil
}

// AddJar unpacks a ZIP archive and enqueues every ".class"-suffixed entry,
// in ZIP directory order; all other entries are ignored.
func (cp *Classpath) AddJar(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("classpath: adding jar: %w", err)
	}
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("classpath: opening jar entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("classpath: reading jar entry %s: %w", f.Name, err)
		}
		if err := cp.AddClass(data); err != nil {
			return fmt.Errorf("classpath: jar entry %s: %w", f.Name, err)
		}
	}
	return nil
}

// AddNativeMethod registers a Go implementation of a native method under its
// mangled name (see MangleName in pkg/nativebridge).
func (cp *Classpath) AddNativeMethod(mangledName string, handler NativeFunc) {
	cp.natives[mangledName] = handler
}

// NativeMethod looks up a registered native handler by mangled name.
func (cp *Classpath) NativeMethod(mangledName string) (NativeFunc, bool) {
	fn, ok := cp.natives[mangledName]
	return fn, ok
}

// Find returns the parsed ClassFile registered under name, if any.
func (cp *Classpath) Find(name string) (*classfile.ClassFile, bool) {
	cf, ok := cp.parsed[name]
	return cf, ok
}

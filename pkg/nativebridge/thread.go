package nativebridge

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/value"
)

// registerThread backs java/lang/Thread under the single-threaded cooperative
// scheduling model (spec §5): start0 never spawns a goroutine, it only flips
// the mirror object's is_alive flag so isAlive()/currentThread() observe the
// state a real Thread.start() would have produced.
func registerThread(t *Table) {
	t.register(MangleName("java/lang/Thread", "<init>"), threadInit)
	t.register(MangleName("java/lang/Thread", "start0"), threadStart0)
	t.register(MangleName("java/lang/Thread", "isAlive"), threadIsAlive)
	t.register(MangleName("java/lang/Thread", "currentThread"), threadCurrentThread)
}

func threadInit(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("<init>: receiver is not a live object")
	}
	obj.Fields["is_alive"] = value.BooleanValue(false)
	return value.Value{}, nil
}

// threadStart0 is the only thing spec §5 asks a Thread's start to do here:
// mark it alive. No run() body is ever invoked and no goroutine is launched.
func threadStart0(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("start0: receiver is not a live object")
	}
	obj.Fields["is_alive"] = value.BooleanValue(true)
	return value.Value{}, nil
}

func threadIsAlive(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("isAlive: receiver is not a live object")
	}
	if alive, ok := obj.Fields["is_alive"]; ok {
		return alive, nil
	}
	return value.BooleanValue(false), nil
}

// threadCurrentThread always answers with the main thread mirror: the
// cooperative scheduler never runs more than one logical thread, so there is
// never a different "current" one to report.
func threadCurrentThread(env RuntimeEnv, args []value.Value) (value.Value, error) {
	return value.RefValue(env.MainThreadID()), nil
}

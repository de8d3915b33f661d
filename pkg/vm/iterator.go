package vm

// iterator backs the value LOAD_ITER produces: NEXT/NEXT_JUMP call
// advance repeatedly until it reports exhaustion (spec §4.5's "consumer
// protocol" for for-in loops and multi-assign destructuring, §4.3.3/4.3.5).
type iterator interface {
	advance(vm *VM) (Value, bool, error) // value, hasMore, error
}

// arrayIterator walks an Array's elements in order.
type arrayIterator struct {
	arr *Array
	idx int
}

func (it *arrayIterator) advance(vm *VM) (Value, bool, error) {
	if it.idx >= len(it.arr.Elems) {
		return Void(), false, nil
	}
	v := it.arr.Elems[it.idx]
	it.idx++
	return v, true, nil
}

// objectIterator walks an Object's own keys, yielding [key, value] pairs
// as two-element arrays (the conventional `for (var k, v in obj)` shape).
type objectIterator struct {
	obj  *Object
	keys []string
	idx  int
}

func (it *objectIterator) advance(vm *VM) (Value, bool, error) {
	if it.idx >= len(it.keys) {
		return Void(), false, nil
	}
	k := it.keys[it.idx]
	it.idx++
	val, _, err := it.obj.Get(vm, k)
	if err != nil {
		return Void(), false, err
	}
	return Arr(NewArray(nil, []Value{Str(k), val})), true, nil
}

// generatorIterator drives a generator function value one NEXT at a time
// via the VM's own call machinery (spec §4.5 generator state machine).
type generatorIterator struct {
	fn *FunctionValue
}

func (it *generatorIterator) advance(vm *VM) (Value, bool, error) {
	v, done, err := vm.resumeGenerator(it.fn, Void())
	if err != nil {
		return Void(), false, err
	}
	if done {
		return Void(), false, nil
	}
	return v, true, nil
}

// makeIterator implements LOAD_ITER: arrays, objects, and generator
// function values are iterable; anything else raises NotIndexable.
func (vm *VM) makeIterator(v Value) (Value, error) {
	switch v.Kind() {
	case KindArray:
		return vm.wrapIterator(&arrayIterator{arr: v.AsArray()}), nil
	case KindObject:
		return vm.wrapIterator(&objectIterator{obj: v.AsObject(), keys: v.AsObject().OwnKeys()}), nil
	case KindFunction, KindClass:
		f := v.AsFunction()
		if f.IsGenerator() {
			return vm.wrapIterator(&generatorIterator{fn: f}), nil
		}
		return Void(), vm.raise(ErrNotIndexable, "value is not iterable")
	default:
		return Void(), vm.raise(ErrNotIndexable, "value is not iterable")
	}
}

// wrapIterator boxes a Go iterator as a runtime Value; the kindIterator
// tag keeps it from being mistaken for any user-observable kind.
func (vm *VM) wrapIterator(it iterator) Value {
	return Value{kind: kindIterator, ref: it}
}

func (vm *VM) iteratorOf(v Value) (iterator, bool) {
	if v.Kind() != kindIterator {
		return nil, false
	}
	it, ok := v.ref.(iterator)
	return it, ok
}

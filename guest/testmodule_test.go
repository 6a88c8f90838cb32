package guest

import "bytes"

// providerModule describes a hand-assembled provider. The classifier returns
// a pointer to result when the first input byte is non-zero and 0 otherwise.
// free_c_string and the deallocator bump the exported free_count and
// dealloc_count globals.
type providerModule struct {
	result      string
	allocName   string
	deallocName string
	omit        map[string]bool
	trap        bool
}

const resultOffset = 16

func (p providerModule) build() []byte {
	if p.allocName == "" {
		p.allocName = "allocate"
	}
	if p.deallocName == "" {
		p.deallocName = "deallocate"
	}

	const (
		typeI32ToI32 = 0
		typeI32I32   = 1
		typeI32      = 2
	)
	types := section(0x01, vec(
		[]byte{0x60, 0x01, 0x7f, 0x01, 0x7f},
		[]byte{0x60, 0x02, 0x7f, 0x7f, 0x00},
		[]byte{0x60, 0x01, 0x7f, 0x00},
	))

	funcs := section(0x03, vec(
		[]byte{typeI32ToI32}, // allocate
		[]byte{typeI32I32},   // deallocate
		[]byte{typeI32ToI32}, // classify
		[]byte{typeI32},      // free
	))

	memory := section(0x05, vec([]byte{0x00, 0x01}))

	globals := section(0x06, vec(
		global(1024), // heap pointer
		global(0),    // free_count
		global(0),    // dealloc_count
	))

	var exports [][]byte
	add := func(name string, kind, index byte) {
		if !p.omit[name] {
			exports = append(exports, append(str(name), kind, index))
		}
	}
	add("memory", 0x02, 0)
	add(p.allocName, 0x00, 0)
	add(p.deallocName, 0x00, 1)
	add("classify_excel_sheets_c", 0x00, 2)
	add("free_c_string", 0x00, 3)
	add("free_count", 0x03, 1)
	add("dealloc_count", 0x03, 2)
	exportSec := section(0x07, vec(exports...))

	allocate := body(
		0x23, 0x00, // global.get heap
		0x23, 0x00, // global.get heap
		0x20, 0x00, // local.get size
		0x6a,       // i32.add
		0x24, 0x00, // global.set heap
	)
	deallocate := body(counter(2)...)
	classify := body(
		// local.get ptr; i32.load8_u
		0x20, 0x00,
		0x2d, 0x00, 0x00,
		// if (result i32) i32.const resultOffset
		0x04, 0x7f,
		0x41, resultOffset,
		// else i32.const 0 end
		0x05,
		0x41, 0x00,
		0x0b,
	)
	if p.trap {
		classify = body(0x00) // unreachable
	}
	free := body(counter(1)...)
	code := section(0x0a, vec(allocate, deallocate, classify, free))

	segment := []byte{0x00, 0x41, resultOffset, 0x0b}
	segment = append(segment, str(p.result+"\x00")...)
	data := section(0x0b, vec(segment))

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range [][]byte{types, funcs, memory, globals, exportSec, code, data} {
		out = append(out, s...)
	}
	return out
}

// counter increments mutable global idx.
func counter(idx byte) []byte {
	return []byte{0x23, idx, 0x41, 0x01, 0x6a, 0x24, idx}
}

func global(init int32) []byte {
	g := []byte{0x7f, 0x01, 0x41}
	g = append(g, sleb(init)...)
	return append(g, 0x0b)
}

func body(instrs ...byte) []byte {
	b := append([]byte{0x00}, instrs...) // no locals
	b = append(b, 0x0b)
	return append(uleb(uint32(len(b))), b...)
}

func section(id byte, content []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func vec(items ...[]byte) []byte {
	return append(uleb(uint32(len(items))), bytes.Join(items, nil)...)
}

func str(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

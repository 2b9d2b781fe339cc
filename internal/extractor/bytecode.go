package extractor

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Opcodes that carry symbolic references or have variable length.
const (
	opIinc            = 0x84
	opTableswitch     = 0xaa
	opLookupswitch    = 0xab
	opGetstatic       = 0xb2
	opPutstatic       = 0xb3
	opGetfield        = 0xb4
	opPutfield        = 0xb5
	opInvokevirtual   = 0xb6
	opInvokespecial   = 0xb7
	opInvokestatic    = 0xb8
	opInvokeinterface = 0xb9
	opInvokedynamic   = 0xba
	opWide            = 0xc4
)

const constructorName = "<init>"

// opcodeLengths holds the fixed instruction length (opcode included) of
// every defined opcode; 0 marks variable-length or undefined opcodes.
var opcodeLengths = func() [256]uint8 {
	var t [256]uint8
	fill := func(from, to int, n uint8) {
		for op := from; op <= to; op++ {
			t[op] = n
		}
	}
	fill(0x00, 0x0f, 1) // nop .. dconst_1
	t[0x10] = 2         // bipush
	t[0x11] = 3         // sipush
	t[0x12] = 2         // ldc
	fill(0x13, 0x14, 3) // ldc_w, ldc2_w
	fill(0x15, 0x19, 2) // iload .. aload
	fill(0x1a, 0x35, 1) // iload_0 .. saload
	fill(0x36, 0x3a, 2) // istore .. astore
	fill(0x3b, 0x83, 1) // istore_0 .. lxor
	t[opIinc] = 3
	fill(0x85, 0x98, 1) // i2l .. dcmpg
	fill(0x99, 0xa8, 3) // ifeq .. jsr
	t[0xa9] = 2         // ret
	fill(0xac, 0xb1, 1) // ireturn .. return
	fill(opGetstatic, opInvokestatic, 3)
	t[opInvokeinterface] = 5
	t[opInvokedynamic] = 5
	t[0xbb] = 3         // new
	t[0xbc] = 2         // newarray
	t[0xbd] = 3         // anewarray
	fill(0xbe, 0xbf, 1) // arraylength, athrow
	fill(0xc0, 0xc1, 3) // checkcast, instanceof
	fill(0xc2, 0xc3, 1) // monitorenter, monitorexit
	t[0xc5] = 4         // multianewarray
	fill(0xc6, 0xc7, 3) // ifnull, ifnonnull
	fill(0xc8, 0xc9, 5) // goto_w, jsr_w
	return t
}()

// instructionLength returns the length of the instruction at pc.
func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	var n int
	switch op {
	case opTableswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+12 > len(code) {
			return 0, fmt.Errorf("tableswitch at %d: truncated", pc)
		}
		low := int32(binary.BigEndian.Uint32(code[base+4:]))
		high := int32(binary.BigEndian.Uint32(code[base+8:]))
		if high < low {
			return 0, fmt.Errorf("tableswitch at %d: high %d < low %d", pc, high, low)
		}
		n = 1 + pad + 12 + int(int64(high)-int64(low)+1)*4
	case opLookupswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+8 > len(code) {
			return 0, fmt.Errorf("lookupswitch at %d: truncated", pc)
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at %d: negative pair count", pc)
		}
		n = 1 + pad + 8 + int(npairs)*8
	case opWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("wide at %d: truncated", pc)
		}
		if code[pc+1] == opIinc {
			n = 6
		} else {
			n = 4
		}
	default:
		n = int(opcodeLengths[op])
		if n == 0 {
			return 0, fmt.Errorf("undefined opcode 0x%02x at %d", op, pc)
		}
	}
	if pc+n > len(code) {
		return 0, fmt.Errorf("instruction 0x%02x at %d: truncated", op, pc)
	}
	return n, nil
}

type lineEntry struct {
	startPC int
	line    int
}

// lineTable maps bytecode offsets to source lines.
type lineTable []lineEntry

func (t lineTable) sort() {
	sort.SliceStable(t, func(i, j int) bool { return t[i].startPC < t[j].startPC })
}

// lineAt returns the line of the entry with the greatest start_pc <= pc, or 0.
func (t lineTable) lineAt(pc int) int {
	i := sort.Search(len(t), func(i int) bool { return t[i].startPC > pc })
	if i == 0 {
		return 0
	}
	return t[i-1].line
}

// scanCode walks a method body and records one access site per field
// access or invocation with a statically known owner.
func scanCode(code []byte, lines lineTable, cp *constantPool) ([]*AccessSite, error) {
	var sites []*AccessSite
	for pc := 0; pc < len(code); {
		n, err := instructionLength(code, pc)
		if err != nil {
			return nil, err
		}

		var kind AccessKind
		switch code[pc] {
		case opGetstatic, opGetfield:
			kind = AccessFieldRead
		case opPutstatic, opPutfield:
			kind = AccessFieldWrite
		case opInvokevirtual, opInvokespecial, opInvokestatic, opInvokeinterface:
			kind = AccessMethodCall
		}

		if kind != "" {
			ref := cp.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if cp.err != nil {
				return nil, fmt.Errorf("instruction at %d: %w", pc, cp.err)
			}
			if kind == AccessMethodCall && ref.name == constructorName {
				kind = AccessConstructorCall
			}
			sites = append(sites, &AccessSite{
				Kind:       kind,
				Owner:      ref.owner,
				Name:       ref.name,
				Descriptor: ref.descriptor,
				Line:       lines.lineAt(pc),
			})
		}
		pc += n
	}
	return sites, nil
}

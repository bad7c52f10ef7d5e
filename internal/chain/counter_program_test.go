package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"

	"counterbridge/internal/contracts"
)

// program is a minimal EVM assembler with two-byte jump labels.
type program struct {
	code   []byte
	labels map[string]int
	fixups map[int]string
}

func newProgram() *program {
	return &program{labels: map[string]int{}, fixups: map[int]string{}}
}

func (p *program) op(ops ...vm.OpCode) *program {
	for _, o := range ops {
		p.code = append(p.code, byte(o))
	}
	return p
}

func (p *program) push(data []byte) *program {
	if len(data) == 0 || len(data) > 32 {
		panic(fmt.Sprintf("push of %d bytes", len(data)))
	}
	p.code = append(p.code, byte(vm.PUSH1)+byte(len(data)-1))
	p.code = append(p.code, data...)
	return p
}

func (p *program) pushByte(b byte) *program {
	return p.push([]byte{b})
}

func (p *program) pushLabel(name string) *program {
	p.code = append(p.code, byte(vm.PUSH2))
	p.fixups[len(p.code)] = name
	p.code = append(p.code, 0, 0)
	return p
}

func (p *program) label(name string) *program {
	p.labels[name] = len(p.code)
	return p.op(vm.JUMPDEST)
}

// revert stores data at memory 0 and reverts with it.
func (p *program) revert(data []byte) *program {
	for off := 0; off < len(data); off += 32 {
		word := common.RightPadBytes(data[off:min(off+32, len(data))], 32)
		p.push(word).pushByte(byte(off)).op(vm.MSTORE)
	}
	return p.pushByte(byte(len(data))).pushByte(0).op(vm.REVERT)
}

func (p *program) bytes() []byte {
	out := append([]byte(nil), p.code...)
	for pos, name := range p.fixups {
		dest, ok := p.labels[name]
		if !ok {
			panic("undefined label " + name)
		}
		out[pos], out[pos+1] = byte(dest>>8), byte(dest)
	}
	return out
}

// counterRuntime assembles runtime code matching the Counter ABI: a uint256 in
// slot 0, Increment/Decrement events, an Error(string) revert on underflow and
// Panic(0x11) on overflow.
func counterRuntime(counterABI abi.ABI) []byte {
	underflow := hexutil.MustDecode(NewRevertError(UnderflowReason).data)
	overflow := append(crypto.Keccak256([]byte("Panic(uint256)"))[:4], common.LeftPadBytes([]byte{0x11}, 32)...)

	p := newProgram()
	p.pushByte(0).op(vm.CALLDATALOAD).pushByte(0xe0).op(vm.SHR)
	for _, name := range []string{contracts.MethodValue, contracts.MethodInc, contracts.MethodIncBy, contracts.MethodDec, contracts.MethodDecBy} {
		p.op(vm.DUP1).push(counterABI.Methods[name].ID).op(vm.EQ).pushLabel(name).op(vm.JUMPI)
	}
	p.pushByte(0).op(vm.DUP1, vm.REVERT)

	p.label(contracts.MethodValue).
		pushByte(0).op(vm.SLOAD).pushByte(0).op(vm.MSTORE).
		pushByte(32).pushByte(0).op(vm.RETURN)

	p.label(contracts.MethodInc).pushByte(1).pushLabel("add").op(vm.JUMP)
	p.label(contracts.MethodIncBy).pushByte(4).op(vm.CALLDATALOAD).pushLabel("add").op(vm.JUMP)
	p.label(contracts.MethodDec).pushByte(1).pushLabel("sub").op(vm.JUMP)
	p.label(contracts.MethodDecBy).pushByte(4).op(vm.CALLDATALOAD).pushLabel("sub").op(vm.JUMP)

	// stack: by
	p.label("add").
		op(vm.DUP1).pushByte(0).op(vm.SLOAD, vm.ADD).
		op(vm.DUP2, vm.DUP2, vm.LT).pushLabel("overflow").op(vm.JUMPI).
		pushByte(0).op(vm.SSTORE).
		pushByte(0).op(vm.MSTORE).
		push(counterABI.Events[contracts.EventIncrement].ID.Bytes()).pushByte(32).pushByte(0).op(vm.LOG1, vm.STOP)

	p.label("sub").
		pushByte(0).op(vm.SLOAD).
		op(vm.DUP2, vm.DUP2, vm.LT).pushLabel("underflow").op(vm.JUMPI).
		op(vm.DUP2, vm.SWAP1, vm.SUB).
		pushByte(0).op(vm.SSTORE).
		pushByte(0).op(vm.MSTORE).
		push(counterABI.Events[contracts.EventDecrement].ID.Bytes()).pushByte(32).pushByte(0).op(vm.LOG1, vm.STOP)

	p.label("underflow").revert(underflow)
	p.label("overflow").revert(overflow)
	return p.bytes()
}

package reference

import (
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/runtime/backends/hostparams"
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/pkg/errors"
)

// programDef is the lowered form of a Graph: the device slots and the launches over them.
// It is what Executable.Save serializes.
type programDef struct {
	Slots          []shapes.Shape
	ParameterNames []string
	ParameterSlots []int
	ResultSlots    []int
	Launches       []launchDef
}

// launchDef is one kernel launch, writing into the Output slot.
type launchDef struct {
	Op       OpType
	Output   int
	Operands []int
	Literal  hostparams.Literal
}

// lower converts the graph into a programDef. Nodes not used by the outputs are dropped, except
// parameters. It panics if the graph is not complete.
func lower(g *Graph) *programDef {
	if !g.returned {
		exceptions.Panicf("graph %q: Return was not called", g.name)
	}
	used := make([]bool, len(g.nodes))
	var visit func(node *Node)
	visit = func(node *Node) {
		if used[node.id] {
			return
		}
		used[node.id] = true
		for _, operand := range node.operands {
			visit(operand)
		}
	}
	for _, output := range g.outputs {
		visit(output)
	}
	for _, parameter := range g.parameters {
		used[parameter.id] = true
	}

	p := &programDef{}
	slotOf := make([]int, len(g.nodes))
	for _, node := range g.nodes { // Nodes are in topological order.
		if !used[node.id] {
			continue
		}
		slot := len(p.Slots)
		slotOf[node.id] = slot
		p.Slots = append(p.Slots, node.shape.Clone())
		if node.op == OpTypeParameter {
			p.ParameterNames = append(p.ParameterNames, node.name)
			p.ParameterSlots = append(p.ParameterSlots, slot)
			continue
		}
		def := launchDef{Op: node.op, Output: slot, Literal: node.literal}
		for _, operand := range node.operands {
			def.Operands = append(def.Operands, slotOf[operand.id])
		}
		p.Launches = append(p.Launches, def)
	}
	for _, output := range g.outputs {
		p.ResultSlots = append(p.ResultSlots, slotOf[output.id])
	}
	return p
}

// check validates the consistency of a programDef, typically one read from a saved executable.
func (p *programDef) check() error {
	numSlots := len(p.Slots)
	validSlot := func(slot int) bool { return slot >= 0 && slot < numSlots }
	for ii, shape := range p.Slots {
		if err := shape.Check(); err != nil {
			return errors.WithMessagef(err, "slot #%d", ii)
		}
		if !isKernelDType(shape.DType) {
			return errors.Errorf("slot #%d has unsupported shape %s", ii, shape)
		}
	}
	if len(p.ParameterNames) != len(p.ParameterSlots) {
		return errors.Errorf("%d parameter names for %d parameters", len(p.ParameterNames), len(p.ParameterSlots))
	}
	for _, slot := range p.ParameterSlots {
		if !validSlot(slot) {
			return errors.Errorf("parameter slot %d out of range", slot)
		}
	}
	if len(p.ResultSlots) == 0 {
		return errors.New("program has no results")
	}
	for _, slot := range p.ResultSlots {
		if !validSlot(slot) {
			return errors.Errorf("result slot %d out of range", slot)
		}
	}
	for ii, def := range p.Launches {
		if def.Op <= OpTypeParameter || def.Op >= OpTypeLast {
			return errors.Errorf("launch #%d has invalid op %s", ii, def.Op)
		}
		if !validSlot(def.Output) {
			return errors.Errorf("launch #%d (%s) output slot %d out of range", ii, def.Op, def.Output)
		}
		numOperands := 0
		switch {
		case def.Op.IsBinary():
			numOperands = 2
		case def.Op.IsReduce(), def.Op == OpTypeScale:
			numOperands = 1
		}
		if len(def.Operands) != numOperands {
			return errors.Errorf("launch #%d (%s) has %d operands, expected %d", ii, def.Op, len(def.Operands), numOperands)
		}
		output := p.Slots[def.Output]
		for _, operand := range def.Operands {
			if !validSlot(operand) {
				return errors.Errorf("launch #%d (%s) operand slot %d out of range", ii, def.Op, operand)
			}
			operandShape := p.Slots[operand]
			if operandShape.DType != output.DType {
				return errors.Errorf("launch #%d (%s) operand %s doesn't match output %s", ii, def.Op, operandShape, output)
			}
			broadcast := def.Op.IsBinary() && operandShape.Size() == 1
			if !def.Op.IsReduce() && operandShape.Size() != output.Size() && !broadcast {
				return errors.Errorf("launch #%d (%s) operand %s doesn't match output %s", ii, def.Op, operandShape, output)
			}
		}
		if def.Op.IsReduce() && output.Size() != 1 {
			return errors.Errorf("launch #%d (%s) output %s must be a scalar", ii, def.Op, output)
		}
	}
	return nil
}

// launch is the runtime form of a launchDef, with its scalar argument staged.
type launch struct {
	op       OpType
	dtype    dtypes.DType
	output   int
	operands []int

	// scalar is the address of the staged scalar argument, if the op takes one.
	scalar unsafe.Pointer
}

// stageLaunches stages the scalar arguments of the launches in h.
//
// Fill, Constant and Scale take their literal narrowed to the dtype. Reductions are seeded with the
// identity of the reduction: the lowest value of the dtype for ReduceMax, the highest for ReduceMin,
// and zero for ReduceSum.
func stageLaunches(h *hostparams.HostParameters, p *programDef) ([]launch, error) {
	launches := make([]launch, len(p.Launches))
	for ii, def := range p.Launches {
		dtype := p.Slots[def.Output].DType
		l := launch{op: def.Op, dtype: dtype, output: def.Output, operands: def.Operands}
		var err error
		switch def.Op {
		case OpTypeConstant, OpTypeFill, OpTypeScale:
			l.scalar, err = h.ValueOf(dtype, def.Literal)
		case OpTypeReduceMax:
			l.scalar, err = h.MinOf(dtype)
		case OpTypeReduceMin:
			l.scalar, err = h.MaxOf(dtype)
		case OpTypeReduceSum:
			l.scalar, err = h.ValueOf(dtype, 0)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "staging scalar of launch #%d (%s)", ii, def.Op)
		}
		launches[ii] = l
	}
	return launches, nil
}

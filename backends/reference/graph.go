package reference

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/runtime/backends/hostparams"
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/shapes"
)

// Graph is the computation representation compiled by the reference backend.
//
// Building methods panic (with exceptions.Panicf) on invalid arguments; Backend.Compile catches
// and returns these as errors if they happen during compilation.
type Graph struct {
	name       string
	nodes      []*Node
	parameters []*Node
	outputs    []*Node
	returned   bool
}

// Node is one value in the Graph.
type Node struct {
	graph    *Graph
	id       int
	op       OpType
	shape    shapes.Shape
	operands []*Node

	// name is only used for parameters.
	name string

	// literal is only used by Constant, Fill and Scale.
	literal hostparams.Literal
}

// Shape of the value of the node.
func (n *Node) Shape() shapes.Shape { return n.shape }

// Op returns the operation of the node.
func (n *Node) Op() OpType { return n.op }

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("#%d %s %s", n.id, n.op, n.shape)
}

// NewGraph creates an empty graph with the given name.
func NewGraph(name string) *Graph {
	return &Graph{name: name}
}

// Name of the graph, also used as the name of the compiled executable.
func (g *Graph) Name() string { return g.name }

func (g *Graph) newNode(op OpType, shape shapes.Shape, operands ...*Node) *Node {
	if g.returned {
		exceptions.Panicf("graph %q: can't add %s after Return", g.name, op)
	}
	for _, operand := range operands {
		if operand == nil || operand.graph != g {
			exceptions.Panicf("graph %q: %s operand is nil or from another graph", g.name, op)
		}
	}
	node := &Node{graph: g, id: len(g.nodes), op: op, shape: shape, operands: operands}
	g.nodes = append(g.nodes, node)
	return node
}

func checkDType(op OpType, dtype dtypes.DType) {
	if !isKernelDType(dtype) {
		exceptions.Panicf("%s: dtype %s not supported by the reference backend", op, dtype)
	}
}

func mustLiteral(op OpType, value any) hostparams.Literal {
	literal, err := hostparams.LiteralOf(value)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	return literal
}

// Parameter adds an input to the graph. Parameters are numbered in the order they are created.
func (g *Graph) Parameter(name string, shape shapes.Shape) *Node {
	checkDType(OpTypeParameter, shape.DType)
	node := g.newNode(OpTypeParameter, shape.Clone())
	node.name = name
	g.parameters = append(g.parameters, node)
	return node
}

// Constant returns a scalar of the given dtype, with value narrowed to dtype (see hostparams.Literal).
func (g *Graph) Constant(dtype dtypes.DType, value any) *Node {
	checkDType(OpTypeConstant, dtype)
	node := g.newNode(OpTypeConstant, shapes.Make(dtype))
	node.literal = mustLiteral(OpTypeConstant, value)
	return node
}

// Fill returns a value of the given shape with all elements set to value narrowed to the shape's dtype.
func (g *Graph) Fill(shape shapes.Shape, value any) *Node {
	checkDType(OpTypeFill, shape.DType)
	node := g.newNode(OpTypeFill, shape.Clone())
	node.literal = mustLiteral(OpTypeFill, value)
	return node
}

func (g *Graph) binaryOp(op OpType, lhs, rhs *Node) *Node {
	if lhs == nil || rhs == nil {
		exceptions.Panicf("graph %q: %s operand is nil", g.name, op)
	}
	if lhs.shape.DType != rhs.shape.DType {
		exceptions.Panicf("%s: operands must have the same dtype, got %s and %s", op, lhs.shape, rhs.shape)
	}
	shape := lhs.shape
	switch {
	case lhs.shape.EqualDimensions(rhs.shape):
	case lhs.shape.IsScalar():
		shape = rhs.shape
	case rhs.shape.IsScalar():
	default:
		exceptions.Panicf("%s: operands must have the same dimensions or one must be a scalar, got %s and %s",
			op, lhs.shape, rhs.shape)
	}
	return g.newNode(op, shape.Clone(), lhs, rhs)
}

// Add returns lhs + rhs, element-wise. One of the operands can be a scalar, broadcast to the other's shape.
func (g *Graph) Add(lhs, rhs *Node) *Node { return g.binaryOp(OpTypeAdd, lhs, rhs) }

// Sub returns lhs - rhs, element-wise. See Add for broadcasting.
func (g *Graph) Sub(lhs, rhs *Node) *Node { return g.binaryOp(OpTypeSub, lhs, rhs) }

// Mul returns lhs * rhs, element-wise. See Add for broadcasting.
func (g *Graph) Mul(lhs, rhs *Node) *Node { return g.binaryOp(OpTypeMul, lhs, rhs) }

// Max returns the element-wise maximum. See Add for broadcasting.
func (g *Graph) Max(lhs, rhs *Node) *Node { return g.binaryOp(OpTypeMax, lhs, rhs) }

// Min returns the element-wise minimum. See Add for broadcasting.
func (g *Graph) Min(lhs, rhs *Node) *Node { return g.binaryOp(OpTypeMin, lhs, rhs) }

// Scale multiplies x by factor, narrowed to x's dtype.
func (g *Graph) Scale(x *Node, factor any) *Node {
	if x == nil {
		exceptions.Panicf("graph %q: Scale operand is nil", g.name)
	}
	node := g.newNode(OpTypeScale, x.shape.Clone(), x)
	node.literal = mustLiteral(OpTypeScale, factor)
	return node
}

func (g *Graph) reduceOp(op OpType, x *Node) *Node {
	if x == nil {
		exceptions.Panicf("graph %q: %s operand is nil", g.name, op)
	}
	return g.newNode(op, shapes.Make(x.shape.DType), x)
}

// ReduceMax returns the maximum of all elements of x, as a scalar.
// For an empty x it returns the lowest value of the dtype (-Inf for floats).
func (g *Graph) ReduceMax(x *Node) *Node { return g.reduceOp(OpTypeReduceMax, x) }

// ReduceMin returns the minimum of all elements of x, as a scalar.
// For an empty x it returns the highest value of the dtype (+Inf for floats).
func (g *Graph) ReduceMin(x *Node) *Node { return g.reduceOp(OpTypeReduceMin, x) }

// ReduceSum returns the sum of all elements of x, as a scalar.
func (g *Graph) ReduceSum(x *Node) *Node { return g.reduceOp(OpTypeReduceSum, x) }

// Return sets the outputs of the graph, in order. After it no more nodes can be added.
func (g *Graph) Return(outputs ...*Node) {
	if g.returned {
		exceptions.Panicf("graph %q: Return called more than once", g.name)
	}
	if len(outputs) == 0 {
		exceptions.Panicf("graph %q: Return requires at least one output", g.name)
	}
	for _, output := range outputs {
		if output == nil || output.graph != g {
			exceptions.Panicf("graph %q: Return output is nil or from another graph", g.name)
		}
	}
	g.outputs = outputs
	g.returned = true
}

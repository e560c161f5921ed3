package ir

import (
	"tsgen/pkg/errors"
	"tsgen/pkg/types"
)

// InsertPoint addresses a position inside a block: new ops go in at Index.
type InsertPoint struct {
	Block *Block
	Index int
}

// Builder creates operations at an insertion point. It is not re-entrant;
// nested lowering saves and restores the insertion point at defined points.
type Builder struct {
	module *Module
	ip     InsertPoint
	saved  []InsertPoint
}

// NewBuilder makes a builder appending to the module body.
func NewBuilder(m *Module) *Builder {
	b := &Builder{module: m}
	b.SetInsertionPointToEnd(m.BodyBlock())
	return b
}

// Module returns the module under construction.
func (b *Builder) Module() *Module { return b.module }

// InsertionPoint returns the current insertion point.
func (b *Builder) InsertionPoint() InsertPoint { return b.ip }

// SetInsertionPoint places the builder at an explicit block position.
func (b *Builder) SetInsertionPoint(block *Block, index int) {
	b.ip = InsertPoint{Block: block, Index: index}
}

// SetInsertionPointToEnd appends at the end of block.
func (b *Builder) SetInsertionPointToEnd(block *Block) {
	b.ip = InsertPoint{Block: block, Index: len(block.Ops)}
}

// SaveInsertionPoint pushes the current point onto the restore stack.
func (b *Builder) SaveInsertionPoint() {
	b.saved = append(b.saved, b.ip)
}

// RestoreInsertionPoint pops the restore stack. Panics on underflow: a
// mismatched save/restore is an internal invariant violation.
func (b *Builder) RestoreInsertionPoint() {
	if len(b.saved) == 0 {
		panic("ir: RestoreInsertionPoint without matching save")
	}
	b.ip = b.saved[len(b.saved)-1]
	b.saved = b.saved[:len(b.saved)-1]
}

// Create builds an op at the insertion point and advances past it.
func (b *Builder) Create(kind OpKind, loc errors.Position, operands []*Value, resultTypes []types.Type, attrs map[string]interface{}) *Op {
	op := &Op{Kind: kind, Operands: operands, Attrs: attrs, Loc: loc}
	for i, rt := range resultTypes {
		op.Results = append(op.Results, &Value{Type: b.InternType(rt), Def: op, Index: i})
	}
	if b.ip.Block != nil {
		b.ip.Block.insertOp(op, b.ip.Index)
		b.ip.Index++
	}
	return op
}

// CreateWithRegions builds an op carrying nregions fresh empty regions.
func (b *Builder) CreateWithRegions(kind OpKind, loc errors.Position, operands []*Value, resultTypes []types.Type, attrs map[string]interface{}, nregions int) *Op {
	op := b.Create(kind, loc, operands, resultTypes, attrs)
	for i := 0; i < nregions; i++ {
		op.Regions = append(op.Regions, &Region{Owner: op})
	}
	return op
}

// NewBlock appends a block with the given argument types to region.
func (b *Builder) NewBlock(region *Region, argTypes []types.Type) *Block {
	blk := &Block{Region: region}
	for i, at := range argTypes {
		blk.Args = append(blk.Args, &Value{Type: b.InternType(at), Owner: blk, Index: i})
	}
	region.Blocks = append(region.Blocks, blk)
	return blk
}

// EraseOp removes op from its block. Dummy passes erase every op they
// created once dependency probing is done.
func (b *Builder) EraseOp(op *Op) {
	if op.block != nil {
		// Keep the insertion point stable when erasing before it.
		if op.block == b.ip.Block {
			for i, o := range op.block.Ops {
				if o == op && i < b.ip.Index {
					b.ip.Index--
					break
				}
			}
		}
		op.block.removeOp(op)
	}
}

// InternType routes a type through the module interner.
func (b *Builder) InternType(t types.Type) types.Type {
	return b.module.interner.Intern(t)
}

// --- convenience creators used throughout the lowering ---

// Constant emits a constant with the given value attribute.
func (b *Builder) Constant(loc errors.Position, t types.Type, value interface{}) *Value {
	op := b.Create(OpConstant, loc, nil, []types.Type{t}, map[string]interface{}{"value": value})
	return op.Result(0)
}

// Undef emits an undef placeholder of type t.
func (b *Builder) Undef(loc errors.Position, t types.Type) *Value {
	return b.Create(OpUndef, loc, nil, []types.Type{t}, nil).Result(0)
}

// Variable allocates storage and returns a ref<t>; name is diagnostic only.
func (b *Builder) Variable(loc errors.Position, t types.Type, name string, init *Value) *Value {
	var operands []*Value
	if init != nil {
		operands = []*Value{init}
	}
	op := b.Create(OpVariable, loc, operands, []types.Type{&types.RefType{Elem: t}}, map[string]interface{}{"name": name})
	return op.Result(0)
}

// Store writes value into ref.
func (b *Builder) Store(loc errors.Position, value, ref *Value) *Op {
	return b.Create(OpStore, loc, []*Value{value, ref}, nil, nil)
}

// Load reads through a ref.
func (b *Builder) Load(loc errors.Position, ref *Value) *Value {
	elem := types.StorageType(ref.Type)
	return b.Create(OpLoad, loc, []*Value{ref}, []types.Type{elem}, nil).Result(0)
}

// Cast converts v to type t (a no-op when already equal).
func (b *Builder) Cast(loc errors.Position, v *Value, t types.Type) *Value {
	if v.Type != nil && v.Type.Equals(t) {
		return v
	}
	return b.Create(OpCast, loc, []*Value{v}, []types.Type{t}, nil).Result(0)
}

package raptor

// ParetoSet keeps elements that are not dominated by any other element.
// Sets are small in practice, so a linear scan over a slice is used.
type ParetoSet[T any] struct {
	elements []T
	// dominates reports whether a is at least as good as b in every criterion.
	dominates func(a, b T) bool
}

func NewParetoSet[T any](dominates func(a, b T) bool) *ParetoSet[T] {
	return &ParetoSet[T]{dominates: dominates}
}

// Qualify reports whether e would be accepted by Add.
func (p *ParetoSet[T]) Qualify(e T) bool {
	for _, x := range p.elements {
		if p.dominates(x, e) {
			return false
		}
	}
	return true
}

// Add inserts e unless an existing element dominates it. Elements dominated by e are
// removed and passed to onDrop, which may be nil.
func (p *ParetoSet[T]) Add(e T, onDrop func(T)) bool {
	if !p.Qualify(e) {
		return false
	}
	kept := p.elements[:0]
	for _, x := range p.elements {
		if p.dominates(e, x) {
			if onDrop != nil {
				onDrop(x)
			}
			continue
		}
		kept = append(kept, x)
	}
	var zero T
	for i := len(kept); i < len(p.elements); i++ {
		p.elements[i] = zero
	}
	p.elements = append(kept, e)
	return true
}

func (p *ParetoSet[T]) Len() int      { return len(p.elements) }
func (p *ParetoSet[T]) At(i int) T    { return p.elements[i] }
func (p *ParetoSet[T]) Elements() []T { return p.elements }
func (p *ParetoSet[T]) Clear()        { p.elements = p.elements[:0] }

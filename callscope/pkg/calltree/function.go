package calltree

// Function aggregates statistics across all calls sharing one identity.
// Identity is the function name plus the serialized source location; the
// name takes part because two distinct anonymous functions may report
// identical locations.
type Function struct {
	ID         FunctionID
	Name       string
	Location   SourceLocation
	ParamNames []string

	CallCount int64
	TotalTime Duration
	SelfTime  Duration

	// HasTimes flips on the first completed call of this function. Until
	// then TotalTime and SelfTime are undefined: every observed call is
	// still open.
	HasTimes bool
}

// FunctionTable resolves function identities to dense ids and owns their
// aggregate records. Every Trace carries its own table; aggregates are
// never shared across traces.
type FunctionTable struct {
	byKey map[string]FunctionID
	funcs []Function
}

func newFunctionTable() FunctionTable {
	return FunctionTable{byKey: make(map[string]FunctionID)}
}

// Resolve returns the id for the given identity, creating a zeroed record
// on first sight. The same identity always resolves to the same id.
func (t *FunctionTable) Resolve(name string, loc SourceLocation, paramNames []string) FunctionID {
	key := name + "\x00" + loc.String()
	if id, ok := t.byKey[key]; ok {
		return id
	}
	id := FunctionID(len(t.funcs))
	t.funcs = append(t.funcs, Function{
		ID:         id,
		Name:       name,
		Location:   loc,
		ParamNames: paramNames,
	})
	t.byKey[key] = id
	return id
}

// Record accumulates the timings of one completed call. Callers invoke it
// at most once per frame exit.
func (t *FunctionTable) Record(id FunctionID, total, self Duration) {
	fn := &t.funcs[id]
	fn.HasTimes = true
	fn.TotalTime += total
	fn.SelfTime += self
}

func (t *FunctionTable) Function(id FunctionID) *Function {
	return &t.funcs[id]
}

func (t *FunctionTable) Len() int {
	return len(t.funcs)
}

package calltree

// FrameID indexes the trace's flat frame list. Ids are dense, assigned in
// discovery order and never reused.
type FrameID int32

// NoFrame is the null frame handle. It stands for the trace root in parent
// links and for "none" in sibling links.
const NoFrame FrameID = -1

// FunctionID indexes the trace's function table.
type FunctionID int32

// Frame is one concrete call. Tree ownership runs exclusively through
// Children (and the trace's root list); Parent, PrevSibling and NextSibling
// are non-owning back-references.
type Frame struct {
	UID      FrameID
	Function FunctionID
	Depth    int32

	Parent      FrameID
	PrevSibling FrameID
	NextSibling FrameID
	Children    []FrameID

	// Display fields copied from the function record at enter time.
	Name       string
	Location   SourceLocation
	ParamNames []string

	// Callsite is live-only bookkeeping and does not survive serialization.
	Callsite  string
	Arguments []string
	Return    *string
	Thrown    *string
	Yielded   *string

	Start Timestamp

	// End, Total and Self are meaningful only once Closed is set. Self is
	// Total minus the total times of all children, which is complete at exit
	// because children always close before their parent.
	End    Timestamp
	Total  Duration
	Self   Duration
	Closed bool
}

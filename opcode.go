package relay

type OpCode int

const (
	OP_ACCEPT OpCode = 1
	OP_POLL   OpCode = 2
	OP_READ   OpCode = 3
	OP_WRITE  OpCode = 4
)

func (c OpCode) String() string {
	switch c {
	case OP_ACCEPT:
		return "accept"
	case OP_POLL:
		return "poll"
	case OP_READ:
		return "read"
	case OP_WRITE:
		return "write"
	}
	return "unknown"
}

// Op describes one in-flight operation. The set of implementations is closed.
type Op interface {
	Code() OpCode
	isOp()
}

type AcceptOp struct {
	Fd int
}

type PollOp struct {
	Fd int
}

// ReadOp owns Buf until its completion is dispatched.
type ReadOp struct {
	Fd  int
	Buf *Buffer
}

// WriteOp carries a cursor into Msg: bytes [Offset, Offset+Len) are still unsent.
type WriteOp struct {
	Fd     int
	Msg    *Outbound
	Offset int
	Len    int
}

func (AcceptOp) Code() OpCode { return OP_ACCEPT }
func (PollOp) Code() OpCode   { return OP_POLL }
func (ReadOp) Code() OpCode   { return OP_READ }
func (WriteOp) Code() OpCode  { return OP_WRITE }

func (AcceptOp) isOp() {}
func (PollOp) isOp()   {}
func (ReadOp) isOp()   {}
func (WriteOp) isOp()  {}

// entryFor translates an operation into a ring entry tagged with h.
func entryFor(h Handle, op Op) Entry {
	var e = Entry{User: uint64(h), Op: op.Code()}
	switch o := op.(type) {
	case AcceptOp:
		e.Fd = o.Fd
	case PollOp:
		e.Fd = o.Fd
	case ReadOp:
		e.Fd = o.Fd
		e.Buf = o.Buf.B
	case WriteOp:
		e.Fd = o.Fd
		e.Buf = o.Msg.Bytes()[o.Offset : o.Offset+o.Len]
	}
	return e
}

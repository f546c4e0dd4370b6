package uds

import "encoding/json"

// Frame ops
const (
	OpAuth     = "auth"
	OpCall     = "call"
	OpGet      = "get"
	OpRelease  = "release"
	OpDescribe = "describe"
	OpQuit     = "quit"
)

// MaxFrameSize bounds a single request line.
const MaxFrameSize = 1 << 20

// Request is one line sent by a host.
//
//	call:     {"id":1,"op":"call","module":"mysql","fn":"connect","args":[...]}
//	method:   {"id":2,"op":"call","this":"<handle>","fn":"query","args":["SELECT 1"]}
//	property: {"id":3,"op":"get","this":"<handle>","prop":"insertId"}
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Op     string          `json:"op"`
	Module string          `json:"module,omitempty"`
	This   string          `json:"this,omitempty"`
	Fn     string          `json:"fn,omitempty"`
	Prop   string          `json:"prop,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Token  string          `json:"token,omitempty"`
}

// Response answers exactly one Request, echoing its id.
type Response struct {
	ID    json.RawMessage `json:"id,omitempty"`
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

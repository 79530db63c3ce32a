// Package protocol defines the JSON framing used between a remote backend
// and a blockdb server.
package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/hierarchy"
)

// Endpoint is the single route every operation is posted to.
const Endpoint = "/api/v1/db-operation"

type Operation string

const (
	OpReadFromBlock      Operation = "readFromBlock"
	OpWriteToBlock       Operation = "writeToBlock"
	OpCreateBlock        Operation = "createBlock"
	OpDeleteBlock        Operation = "deleteBlock"
	OpBlockInfo          Operation = "blockInfo"
	OpGetAllBlocks       Operation = "getAllBlocks"
	OpCreateCollection   Operation = "createCollection"
	OpDeleteCollection   Operation = "deleteCollection"
	OpGetAllCollections  Operation = "getAllCollections"
	OpIncludesBlock      Operation = "includesBlock"
	OpIncludesCollection Operation = "includesCollection"
	OpClaimLock          Operation = "claimLock"
	OpReleaseLock        Operation = "releaseLock"
	OpEnsureHierarchy    Operation = "ensureHierarchy"
	OpLockAndGet         Operation = "lockAndGet"
	OpLockAndSet         Operation = "lockAndSet"
	OpLockAndUpdate      Operation = "lockAndUpdate"
)

// Operations returns every operation a server has to answer.
func Operations() []Operation {
	return []Operation{
		OpReadFromBlock, OpWriteToBlock, OpCreateBlock, OpDeleteBlock, OpBlockInfo,
		OpGetAllBlocks, OpCreateCollection, OpDeleteCollection, OpGetAllCollections,
		OpIncludesBlock, OpIncludesCollection, OpClaimLock, OpReleaseLock,
		OpEnsureHierarchy, OpLockAndGet, OpLockAndSet, OpLockAndUpdate,
	}
}

// Request is the body of every call.
type Request struct {
	Path      string          `json:"path"`
	Operation Operation       `json:"operation"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Response carries either a result or an error, never both.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

type QueryData struct {
	Query data.Document `json:"query"`
}

type SetOptions struct {
	Overwrite bool `json:"overwrite"`
}

type SetData struct {
	Query data.Document `json:"query"`
	Opts  SetOptions    `json:"opts"`
}

type WriteData struct {
	Payload data.Document `json:"payload"`
}

type CreateBlockData struct {
	Opts data.BlockOptions `json:"opts"`
}

// ClaimData carries timestamps as unix milliseconds.
type ClaimData struct {
	Holder    string `json:"holder"`
	Now       int64  `json:"now"`
	ExpiresAt int64  `json:"expiresAt"`
}

type ReleaseData struct {
	Holder string `json:"holder"`
}

type HierarchyData struct {
	Tree hierarchy.Tree `json:"tree"`
}

// NewRequest encodes payload as the data of a request. A nil payload sends no data.
func NewRequest(op Operation, path string, payload any) (*Request, error) {
	req := &Request{
		Path:      path,
		Operation: op,
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req.Data = raw
	}

	return req, nil
}

// Decode unmarshals the request data into v. Missing data leaves v untouched.
func (r *Request) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}

	if err := Unmarshal(r.Data, v); err != nil {
		if perr := FromError(err); perr.Name != NameInternal {
			return err
		}
		return NewError(NameBadRequest, "malformed data for '"+string(r.Operation)+"': "+err.Error())
	}
	return nil
}

// Unmarshal decodes b into v. Documents inside v follow the number rules of
// data.UnmarshalDocument, so large integers survive the wire.
func Unmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}

	switch t := v.(type) {
	case *data.Document:
		data.NormalizeNumbers(*t)
	case *QueryData:
		data.NormalizeNumbers(t.Query)
	case *SetData:
		data.NormalizeNumbers(t.Query)
	case *WriteData:
		data.NormalizeNumbers(t.Payload)
	}
	return nil
}

package protocol_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
	"github.com/mwantia/blockdb/hierarchy"
	"github.com/mwantia/blockdb/protocol"
	"github.com/stretchr/testify/require"
)

func TestFromError_SentinelsSurviveTheWire(t *testing.T) {
	cases := map[error]int{
		dataerrors.BlockNotFound("/a"):                  http.StatusNotFound,
		dataerrors.CollectionNotFound("/a"):             http.StatusNotFound,
		dataerrors.BlockAlreadyExists("/a"):             http.StatusConflict,
		dataerrors.ParentCollectionMissing("/a"):        http.StatusConflict,
		dataerrors.InvalidPath("/a", "is a block"):      http.StatusConflict,
		dataerrors.HierarchyConflict("/a", "flag"):      http.StatusConflict,
		dataerrors.InvalidHierarchySpec("/a", "shape"):  http.StatusBadRequest,
		dataerrors.InvalidPatchOperator("a", "unknown"): http.StatusBadRequest,
		dataerrors.LockTimeout("/a", 0):                 http.StatusRequestTimeout,
	}

	for err, status := range cases {
		perr := protocol.FromError(err)
		require.Equal(t, status, perr.StatusCode(), perr.Name)

		raw, encErr := json.Marshal(&protocol.Response{Error: perr})
		require.NoError(t, encErr)

		var decoded protocol.Response
		require.NoError(t, json.Unmarshal(raw, &decoded))
		require.NotNil(t, decoded.Error)
		require.Equal(t, err.Error(), decoded.Error.Error())

		for _, sentinel := range []error{
			data.ErrBlockNotFound, data.ErrCollectionNotFound, data.ErrBlockAlreadyExists,
			data.ErrParentCollectionMissing, data.ErrInvalidPath, data.ErrHierarchyConflict,
			data.ErrInvalidHierarchySpec, data.ErrInvalidPatchOperator, data.ErrLockTimeout,
		} {
			require.Equal(t, errors.Is(err, sentinel), errors.Is(decoded.Error, sentinel), perr.Name)
		}
	}
}

func TestFromError_Unknown(t *testing.T) {
	perr := protocol.FromError(fmt.Errorf("disk on fire"))
	require.Equal(t, protocol.NameInternal, perr.Name)
	require.Equal(t, http.StatusInternalServerError, perr.StatusCode())
	require.Nil(t, perr.Unwrap())
}

func TestRequest_Decode(t *testing.T) {
	req, err := protocol.NewRequest(protocol.OpLockAndSet, "/a", &protocol.SetData{
		Query: data.Document{"x": 1.0},
		Opts:  protocol.SetOptions{Overwrite: true},
	})
	require.NoError(t, err)

	var payload protocol.SetData
	require.NoError(t, req.Decode(&payload))
	require.True(t, payload.Opts.Overwrite)
	require.Equal(t, data.Document{"x": 1.0}, payload.Query)

	empty, err := protocol.NewRequest(protocol.OpReadFromBlock, "/a", nil)
	require.NoError(t, err)
	require.Empty(t, empty.Data)
	require.NoError(t, empty.Decode(&payload))

	bad := &protocol.Request{Operation: protocol.OpWriteToBlock, Data: json.RawMessage(`{"payload": 5}`)}
	var write protocol.WriteData
	err = bad.Decode(&write)

	var perr *protocol.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, protocol.NameBadRequest, perr.Name)
}

func TestRequest_DecodeHierarchyKeepsSpecErrors(t *testing.T) {
	req := &protocol.Request{
		Operation: protocol.OpEnsureHierarchy,
		Data:      json.RawMessage(`{"tree": {"a": "NOT_A_TAG"}}`),
	}

	var payload protocol.HierarchyData
	require.ErrorIs(t, req.Decode(&payload), data.ErrInvalidHierarchySpec)

	tree := hierarchy.Tree{
		{Name: "users", Node: hierarchy.Collection(hierarchy.Tree{{Name: "bob", Node: hierarchy.EncryptedBlock()}})},
		{Name: "config", Node: hierarchy.Block()},
	}
	req, err := protocol.NewRequest(protocol.OpEnsureHierarchy, "/", &protocol.HierarchyData{Tree: tree})
	require.NoError(t, err)

	require.NoError(t, req.Decode(&payload))
	require.Equal(t, tree, payload.Tree)
}

func TestOperations_AreUnique(t *testing.T) {
	seen := make(map[protocol.Operation]bool)
	for _, op := range protocol.Operations() {
		require.False(t, seen[op], op)
		seen[op] = true
	}
	require.Len(t, seen, 17)
}

func TestRequest_DecodeKeepsLargeIntegers(t *testing.T) {
	const big = int64(1)<<60 + 7

	req, err := protocol.NewRequest(protocol.OpWriteToBlock, "/a", &protocol.WriteData{
		Payload: data.Document{"id": big, "count": 3.0},
	})
	require.NoError(t, err)

	var payload protocol.WriteData
	require.NoError(t, req.Decode(&payload))
	require.Equal(t, data.Document{"id": big, "count": 3.0}, payload.Payload)

	var doc data.Document
	require.NoError(t, protocol.Unmarshal([]byte(`{"nested": [9007199254740993]}`), &doc))
	require.Equal(t, data.Document{"nested": []any{int64(9007199254740993)}}, doc)
}

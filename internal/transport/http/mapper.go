package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/store"
)

func statusFromStoreError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrInvalidPath):
		return http.StatusBadRequest, "invalid path"
	case errors.Is(err, store.ErrInvalidData):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable, "store closed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// decodeInbound unmarshals the payload of a known inbound frame into dst.
// It returns a protocol error for payloads the client must fix.
func decodeInbound(inbound proto.Inbound, dst any) *proto.Error {
	if len(inbound.Data) == 0 {
		return &proto.Error{Code: proto.CodeBadRequest, Msg: "data is required"}
	}
	if err := json.Unmarshal(inbound.Data, dst); err != nil {
		return &proto.Error{Code: proto.CodeBadRequest, Msg: "malformed data"}
	}
	return nil
}

func queryError(err error) *proto.Error {
	if errors.Is(err, store.ErrInvalidPath) {
		return &proto.Error{Code: proto.CodeInvalidQuery, Msg: "invalid collection path"}
	}
	return &proto.Error{Code: proto.CodeInvalidQuery, Msg: err.Error()}
}

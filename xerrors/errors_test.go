package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestDeriveMatchesSentinel(t *testing.T) {
	err := ErrUnknownVersion.Derive("version %d", 9)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	assert.NotErrorIs(t, err, ErrContainerNotFound)
	assert.Equal(t, "version 9", err.Detail)
	assert.Equal(t, "version id was never created", ErrUnknownVersion.Detail)
	assert.NotEmpty(t, err.Stack)
}

func TestWrapKeepsTypeAndCode(t *testing.T) {
	base := ErrArenaExhausted.Derive("limit 8")
	wrapped := WrapInternal(fmt.Errorf("update: %w", base), "segment update")
	assert.Equal(t, ErrLimitExceeded, wrapped.Type)
	assert.Equal(t, ErrArenaExhausted.Code, wrapped.Code)
	assert.ErrorIs(t, wrapped, ErrArenaExhausted)

	plain := WrapInternal(errors.New("disk full"), "save snapshot")
	assert.Equal(t, ErrInternal, plain.Type)
	assert.Nil(t, WrapInternal(nil, "noop"))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		http int
		grpc codes.Code
	}{
		{ErrInvalidRange, http.StatusBadRequest, codes.InvalidArgument},
		{ErrConsumed, http.StatusBadRequest, codes.FailedPrecondition},
		{ErrContainerNotFound, http.StatusNotFound, codes.NotFound},
		{ErrArenaExhausted, http.StatusInsufficientStorage, codes.ResourceExhausted},
		{ErrAuditFailed, http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.http, tc.err.HTTPStatus(), tc.err.Message)
		assert.Equal(t, tc.grpc, tc.err.GRPCCode(), tc.err.Message)
		assert.Equal(t, tc.grpc, tc.err.ToGRPCStatus().Code())
	}
}

func TestFromError(t *testing.T) {
	e, ok := FromError(fmt.Errorf("ctx: %w", NotFound("snapshot a")))
	assert.True(t, ok)
	assert.Equal(t, ErrNotFound, e.Type)

	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)
	_, ok = FromError(nil)
	assert.False(t, ok)
}

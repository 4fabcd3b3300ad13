package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChain(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("connection reset")
	wrapped := Wrap(CodeNetwork, base, "fetch cart")

	require.NotNil(t, As(wrapped))
	assert.Equal(t, CodeNetwork, As(wrapped).Code())
	assert.ErrorIs(t, wrapped, base)
}

func TestAsFindsNestedTypedError(t *testing.T) {
	t.Parallel()

	inner := New(CodePaymentDecline, "card declined")
	outer := fmt.Errorf("checkout: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, CodePaymentDecline, typed.Code())
	assert.True(t, Is(outer, CodePaymentDecline))
	assert.False(t, Is(outer, CodeCommitFailed))
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestDomainCodeMetadata(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code   Code
		status int
	}{
		{CodeEmptySelection, http.StatusConflict},
		{CodeExpiredCoupon, http.StatusUnprocessableEntity},
		{CodePaymentDecline, http.StatusUnprocessableEntity},
		{CodeCommitFailed, http.StatusBadGateway},
		{CodeNetwork, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, MetadataFor(tc.code).HTTPStatus, string(tc.code))
	}
}

func TestDumpCollectsChain(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeCommitFailed, fmt.Errorf("backend said no"), "commit order")
	dump := Dump(err)

	assert.Equal(t, CodeCommitFailed, dump.Code)
	require.Len(t, dump.Chain, 2)
	assert.Contains(t, dump.TopMessage, "commit order")
}

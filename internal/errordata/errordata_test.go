package errordata

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorDataKeepsFirstError(t *testing.T) {
	assert.Nil(t, GetErrorData(context.Background()))

	ctx := WithErrorData(context.Background())
	ed := GetErrorData(ctx)
	require.NotNil(t, ed)
	assert.NoError(t, ed.Err())

	ed.Record(nil, http.StatusTeapot)
	assert.NoError(t, ed.Err())

	first := errors.New("chat not found")
	ed.Record(first, http.StatusNotFound)
	ed.Record(errors.New("later"), http.StatusInternalServerError)
	assert.Equal(t, first, ed.Err())
	assert.Equal(t, http.StatusNotFound, ed.Status())
}

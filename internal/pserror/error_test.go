package pserror_test

import (
	"net/http"
	"testing"

	"github.com/mdouchement/pastry/internal/pserror"
	"github.com/stretchr/testify/assert"
)

func TestPSError(t *testing.T) {
	err := pserror.New("some message")

	assert.Equal(t, "some message", err.Error())
	assert.Equal(t, http.StatusInternalServerError, pserror.StatusCode(err))
}

func TestPSError_WithTagCode(t *testing.T) {
	err := pserror.NewWithTagCode(http.StatusUnauthorized, "wrong-password", "Wrong password.")

	assert.Equal(t, "Wrong password.", err.Error())
	assert.Equal(t, http.StatusUnauthorized, pserror.StatusCode(err))
}

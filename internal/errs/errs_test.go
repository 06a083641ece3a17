package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindParse, KindOf(New(KindParse, "bad")))

	wrapped := fmt.Errorf("outer: %w", New(KindFileSize, "too big"))
	assert.Equal(t, KindFileSize, KindOf(wrapped))
}

func TestErrorsIsByKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", AtLine(KindValidation, 3, "title is required"))

	assert.True(t, errors.Is(err, Validation))
	assert.False(t, errors.Is(err, Parse))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "line 4: title is required", AtLine(KindValidation, 4, "title is required").Error())

	cause := errors.New("disk I/O")
	e := Wrap(KindDatabaseConnection, cause, "save user book")
	assert.Equal(t, "save user book: disk I/O", e.Error())
	assert.ErrorIs(t, e, cause)
}

func TestRecoverable(t *testing.T) {
	assert.True(t, KindValidation.Recoverable())
	assert.True(t, KindDuplicateHandling.Recoverable())
	assert.False(t, KindParse.Recoverable())
	assert.False(t, KindDatabaseConnection.Recoverable())
}

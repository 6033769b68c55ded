package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsUnwrap(t *testing.T) {
	ext := fmt.Errorf("product job: %w", &ExtractionError{URL: "http://x", Err: ErrUnsupportedSite})
	assert.True(t, errors.Is(ext, ErrUnsupportedSite))

	var ee *ExtractionError
	assert.True(t, errors.As(ext, &ee))
	assert.Equal(t, "http://x", ee.URL)
	assert.Equal(t, "extract http://x: unsupported website", ee.Error())

	cause := errors.New("429 too many requests")
	gen := &GenerationError{Err: cause}
	assert.ErrorIs(t, gen, cause)
	assert.Equal(t, "generate content: 429 too many requests", gen.Error())
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeEmpty, Classify(nil, 0))
	assert.Equal(t, OutcomeOK, Classify(nil, 3))
	assert.Equal(t, OutcomeTimeout, Classify(fmt.Errorf("fmp: %w", context.DeadlineExceeded), 0))
	assert.Equal(t, OutcomeError, Classify(errors.New("status 500"), 0))
}

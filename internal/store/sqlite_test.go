package store

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStampSaturates(t *testing.T) {
	s := &SQLiteStore{now: time.Now, lastStamp: math.MaxInt64}

	assert.Equal(t, int64(math.MaxInt64), s.stamp(0))
	assert.Equal(t, int64(math.MaxInt64), s.stamp(math.MaxInt64))
}

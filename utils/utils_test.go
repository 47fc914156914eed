package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"100":    "10000",
		"100.00": "10000",
		"19.99":  "1999",
		"0.1":    "10",
		"12.345": "1235",
	}
	for in, want := range cases {
		require.Equal(t, want, ToMinorUnits(decimal.RequireFromString(in)), in)
	}
}

func TestStringHelpers(t *testing.T) {
	t.Parallel()

	require.Equal(t, "4111111111111111", StripSpaces("4111 1111 1111 1111"))
	require.Equal(t, "11987654321", OnlyDigits("(11) 98765-4321"))
	require.Equal(t, "01310100", OnlyDigits("01310-100"))
	require.Equal(t, "b", FirstNonEmpty("", "  ", "b", "c"))
	require.Equal(t, "", FirstNonEmpty())
}

func TestTaskCancel(t *testing.T) {
	t.Parallel()

	var fired int32
	task := Schedule(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	require.True(t, task.Cancel())
	require.False(t, task.Cancel())

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestTaskFiresOnce(t *testing.T) {
	t.Parallel()

	var fired int32
	task := Schedule(5*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	require.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, task.Cancel())

	var nilTask *Task
	require.False(t, nilTask.Cancel())
}

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Run("string fallback", func(t *testing.T) {
		t.Setenv("INVOTE_TEST_STR", "")
		assert.Equal(t, "def", Env("INVOTE_TEST_STR", "def"))
		t.Setenv("INVOTE_TEST_STR", "value")
		assert.Equal(t, "value", Env("INVOTE_TEST_STR", "def"))
	})

	t.Run("int ignores garbage and non-positive", func(t *testing.T) {
		t.Setenv("INVOTE_TEST_INT", "abc")
		assert.Equal(t, 7, EnvInt("INVOTE_TEST_INT", 7))
		t.Setenv("INVOTE_TEST_INT", "-3")
		assert.Equal(t, 7, EnvInt("INVOTE_TEST_INT", 7))
		t.Setenv("INVOTE_TEST_INT", "12")
		assert.Equal(t, 12, EnvInt("INVOTE_TEST_INT", 7))
	})

	t.Run("bool only true is true", func(t *testing.T) {
		t.Setenv("INVOTE_TEST_BOOL", "")
		assert.True(t, EnvBool("INVOTE_TEST_BOOL", true))
		t.Setenv("INVOTE_TEST_BOOL", "TRUE")
		assert.True(t, EnvBool("INVOTE_TEST_BOOL", false))
		t.Setenv("INVOTE_TEST_BOOL", "yes")
		assert.False(t, EnvBool("INVOTE_TEST_BOOL", true))
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("INVOTE_TEST_DUR", "90m")
		assert.Equal(t, 90*time.Minute, EnvDuration("INVOTE_TEST_DUR", time.Hour))
		t.Setenv("INVOTE_TEST_DUR", "soon")
		assert.Equal(t, time.Hour, EnvDuration("INVOTE_TEST_DUR", time.Hour))
	})

	t.Run("list", func(t *testing.T) {
		t.Setenv("INVOTE_TEST_LIST", " a, ,b ,c")
		assert.Equal(t, []string{"a", "b", "c"}, EnvList("INVOTE_TEST_LIST", nil))
		t.Setenv("INVOTE_TEST_LIST", "")
		assert.Equal(t, []string{"x"}, EnvList("INVOTE_TEST_LIST", []string{"x"}))
	})
}

package config

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("BF_TEST_STR", "value")
	t.Setenv("BF_TEST_INT", "12")
	t.Setenv("BF_TEST_BAD_INT", "twelve")
	t.Setenv("BF_TEST_DUR", "90s")
	t.Setenv("BF_TEST_LIST", "10.0.0.0/8, 192.168.0.0/16")
	t.Setenv("BF_TEST_EMPTY_LIST", "")

	if got := getEnv("BF_TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv=%q", got)
	}
	if got := getEnv("BF_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv missing=%q", got)
	}
	if got := getEnvInt("BF_TEST_INT", 5); got != 12 {
		t.Errorf("getEnvInt=%d", got)
	}
	if got := getEnvInt("BF_TEST_BAD_INT", 5); got != 5 {
		t.Errorf("getEnvInt bad=%d, want fallback", got)
	}
	if got := getEnvDuration("BF_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration=%s", got)
	}
	if got := getEnvList("BF_TEST_LIST", nil); len(got) != 2 || got[1] != "192.168.0.0/16" {
		t.Errorf("getEnvList=%v", got)
	}
	if got := getEnvList("BF_TEST_EMPTY_LIST", []string{"x"}); got != nil {
		t.Errorf("empty list env must disable the fallback, got %v", got)
	}
}

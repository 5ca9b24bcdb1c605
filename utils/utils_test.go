package utils

import (
	"testing"
	"time"
)

func TestStringSliceContains(t *testing.T) {
	testMap := []struct {
		testName string
		slice    []string
		val      string
		want     bool
	}{
		{"Value present", []string{"start", "stop", "reboot"}, "stop", true},
		{"Value absent", []string{"start", "stop"}, "reboot", false},
		{"Empty slice", []string{}, "start", false},
	}

	for _, value := range testMap {
		got := StringSliceContains(value.slice, value.val)
		if got != value.want {
			t.Errorf("%s: expected %v, got %v", value.testName, value.want, got)
		}
	}
}

func TestDedup(t *testing.T) {
	got := Dedup([]string{"i-1", "i-2", "i-1", "i-3", "i-2"})
	want := []string{"i-1", "i-2", "i-3"}

	if len(got) != len(want) {
		t.Fatalf("expected %v entries, got %v", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v at index %v, got %v", want[i], i, got[i])
		}
	}
}

func TestFormatCountdown(t *testing.T) {
	testMap := []struct {
		testName string
		d        time.Duration
		want     string
	}{
		{"Zero", 0, "0s"},
		{"Negative", -5 * time.Second, "0s"},
		{"Seconds only", 42 * time.Second, "42s"},
		{"Minutes and seconds", 19*time.Minute + 3*time.Second, "19m 3s"},
	}

	for _, value := range testMap {
		got := FormatCountdown(value.d)
		if got != value.want {
			t.Errorf("%s: expected %s, got %s", value.testName, value.want, got)
		}
	}
}

func TestRandHexLength(t *testing.T) {
	s := RandHex(16)
	if len(s) != 32 {
		t.Errorf("expected hex string of length 32, got %v", len(s))
	}
}

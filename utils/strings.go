package utils // import "github.com/splunklabhq/splunklab/backend/services/utils"

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// RandHex creates a hexadecimal string with the provided number of bytes of
// randomness. Therefore, the output string will have length 2 * numBytes.
func RandHex(numBytes uint8) string {
	b := make([]byte, numBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ColorRed returns the input string surrounded by the ANSI escape codes to
// color the text red. Text color is reset at the end of the returned string.
func ColorRed(s string) string {
	const (
		codeReset = "\033[0m"
		codeRed   = "\033[31m"
	)

	return Sprintf("%s%s%s", codeRed, s, codeReset)
}

// The following two functions exist so that we don't have to import `fmt` into
// any other packages (so we don't accidentally log something using `fmt`
// functions instead of using the `lablogger` equivalents that send
// information to logz.io and Sentry).

// Sprintf creates a string from format string and args.
func Sprintf(format string, v ...interface{}) string {
	return fmt.Sprintf(format, v...)
}

// MakeError creates an error from format string and args.
func MakeError(format string, v ...interface{}) error {
	return fmt.Errorf(format, v...)
}

// FormatCountdown renders a remaining duration as a short human-readable
// string (e.g. "19m 3s"), used for rate-limit and freeze countdowns shown
// to the user.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d - m*time.Minute) / time.Second
	if m == 0 {
		return Sprintf("%ds", s)
	}
	return Sprintf("%dm %ds", m, s)
}

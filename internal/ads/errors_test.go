package ads

import "testing"

func TestErrorTextForDocumentedCodes(t *testing.T) {
	cases := []struct {
		code Error
		want string
	}{
		{1808, "symbol not found"},
		{1803, "invalid parameter value(s)"},
	}
	for _, tc := range cases {
		if got := tc.code.Error(); got != tc.want {
			t.Errorf("Error(%d).Error() = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestErrorUnknownCodeFallback(t *testing.T) {
	e := Error(0xBEEF)
	if got, want := e.Error(), "ADS error 0xBEEF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsError(t *testing.T) {
	if ErrNoError.IsError() {
		t.Error("ErrNoError.IsError() should be false")
	}
	if !ErrDeviceSymbolNotFound.IsError() {
		t.Error("ErrDeviceSymbolNotFound.IsError() should be true")
	}
}

package goads

import (
	"errors"
	"testing"

	"github.com/twincatio/goads/internal/ads"
	"github.com/twincatio/goads/internal/transport"
)

func TestClassifyErrorNil(t *testing.T) {
	if ClassifyError(nil, "read") != nil {
		t.Error("ClassifyError(nil) should return nil")
	}
}

func TestClassifyErrorADS(t *testing.T) {
	ce := ClassifyError(ads.ErrDeviceSymbolNotFound, "read_symbol")
	if ce.Category != ErrorCategoryADS {
		t.Errorf("Category = %v, want %v", ce.Category, ErrorCategoryADS)
	}
	if ce.ADSError == nil || *ce.ADSError != ads.ErrDeviceSymbolNotFound {
		t.Errorf("ADSError = %v, want %v", ce.ADSError, ads.ErrDeviceSymbolNotFound)
	}
}

func TestClassifyErrorADSRetryable(t *testing.T) {
	ce := ClassifyError(ads.ErrDeviceBusy, "write_symbol")
	if !ce.Retryable {
		t.Error("device-busy ADS error should be classified retryable")
	}

	ce = ClassifyError(ads.ErrDeviceSymbolNotFound, "read_symbol")
	if ce.Retryable {
		t.Error("symbol-not-found ADS error should not be classified retryable")
	}
}

func TestClassifyErrorConnectionState(t *testing.T) {
	ce := ClassifyError(transport.ErrConnectionClosed, "send")
	if ce.Category != ErrorCategoryState {
		t.Errorf("Category = %v, want %v", ce.Category, ErrorCategoryState)
	}
}

func TestClassifyErrorNetworkAndTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"broken pipe", errors.New("write: broken pipe"), ErrorCategoryNetwork},
		{"deadline exceeded", errors.New("context deadline exceeded"), ErrorCategoryTimeout},
		{"timeout", errors.New("i/o timeout"), ErrorCategoryTimeout},
		{"validation", errors.New("symbol name cannot be empty"), ErrorCategoryValidation},
		{"protocol", errors.New("unmarshal ads header: short frame"), ErrorCategoryProtocol},
		{"unknown", errors.New("something unexpected happened"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyError(tt.err, "op")
			if ce.Category != tt.want {
				t.Errorf("Category = %v, want %v", ce.Category, tt.want)
			}
		})
	}
}

func TestClassifiedErrorUnwrapAndMessage(t *testing.T) {
	base := errors.New("boom")
	ce := ClassifyError(base, "read_symbol")
	if !errors.Is(ce, base) {
		t.Error("ClassifiedError should unwrap to the original error")
	}

	ce.SymbolName = "MAIN.counter"
	if got, want := ce.Error(), `read_symbol operation failed for symbol "MAIN.counter": boom`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorCategoryString(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     string
	}{
		{ErrorCategoryNetwork, "network"},
		{ErrorCategoryProtocol, "protocol"},
		{ErrorCategoryADS, "ads"},
		{ErrorCategoryValidation, "validation"},
		{ErrorCategoryConfiguration, "configuration"},
		{ErrorCategoryTimeout, "timeout"},
		{ErrorCategoryState, "state"},
		{ErrorCategoryUnknown, "unknown"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewConstructors(t *testing.T) {
	netErr := NewNetworkError("dial", errors.New("refused")).(*ClassifiedError)
	if netErr.Category != ErrorCategoryNetwork || !netErr.Retryable {
		t.Errorf("NewNetworkError() = %+v, want retryable network error", netErr)
	}

	if err := NewValidationError("write", "bad value"); err.Error() == "" {
		t.Error("NewValidationError should produce a non-empty message")
	}

	adsErr := NewADSError("read", ads.ErrDeviceSymbolNotFound)
	if !errors.Is(adsErr, ads.ErrDeviceSymbolNotFound) {
		t.Error("NewADSError should wrap the underlying ADS error")
	}

	if err := NewStateError("close", "client closed"); err.Error() == "" {
		t.Error("NewStateError should produce a non-empty message")
	}
}

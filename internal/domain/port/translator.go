package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/mario-guerra/translation-service/internal/domain/entity"
)

// ErrorClass classifies provider failures for the retry driver.
type ErrorClass string

const (
	// ErrorClassTransient failures (timeouts, rate limits) are expected
	// to succeed on retry.
	ErrorClassTransient ErrorClass = "transient"
	// ErrorClassPermanent failures (invalid credentials, bad request)
	// will not be resolved by retrying.
	ErrorClassPermanent ErrorClass = "permanent"
)

// ProviderError is a classified speech-provider failure.
type ProviderError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Class, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a provider failure that retrying
// cannot fix. Unclassified errors are treated as transient.
func IsPermanent(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Class == ErrorClassPermanent
}

// TranslationProvider is the opaque speech capability: one call
// transcribes and translates an audio file, another synthesizes speech
// from text into a local WAV file.
type TranslationProvider interface {
	TranslateAudio(ctx context.Context, audioPath, langIn, langOut string) (*entity.TranslationResult, error)
	SynthesizeAudio(ctx context.Context, text, destPath string) error
}

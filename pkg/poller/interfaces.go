package poller

import (
	"context"
	"time"

	"github.com/carverauto/scancell/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
	Sleep(ctx context.Context, d time.Duration)
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// PLC is the slice of the connection manager the loop needs.
type PLC interface {
	ReadBits(ctx context.Context, device string, count int) ([]byte, error)
	WriteBits(ctx context.Context, device string, values []byte) error
	ReadSignedWords(ctx context.Context, device string, count int) ([]int32, error)
}

// Capturer saves a camera frame to path; false means the frame was not
// saved and the reason has already been recorded.
type Capturer interface {
	Capture(ctx context.Context, path string) bool
}

// Inferrer runs defect inference on a saved frame.
type Inferrer interface {
	Infer(ctx context.Context, imagePath, batchID, batchDir string) (*models.InferenceOutcome, error)
}

// EventSink receives loop lifecycle events.
type EventSink interface {
	AddEvent(kind, message string)
	SetPolling(polling bool)
}

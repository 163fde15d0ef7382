package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/marvinsync/marvinsync/pkg/deviceio"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusPath = "/Library/calibre.mm/status.xml"

func newTestRunner(t *testing.T) (*Runner, *deviceio.Local) {
	t.Helper()

	dev := deviceio.NewLocal(t.TempDir())
	r := NewRunner(dev, "/Library/calibre.mm/staging", statusPath)
	r.PollInterval = 5 * time.Millisecond
	r.WatchdogTimeout = 250 * time.Millisecond
	return r, dev
}

func writeStatus(t *testing.T, dev *deviceio.Local, code int, timestamp, progress float64) {
	t.Helper()
	body := fmt.Sprintf(
		`<status code="%d" timestamp="%f"><progress>%f</progress></status>`,
		code, timestamp, progress)
	require.NoError(t, dev.Write(context.Background(), []byte(body), statusPath))
}

func TestStageRenamesIntoPlace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, dev := newTestRunner(t)

	require.NoError(t, r.Stage(ctx, New(DeleteBooks, []ManifestBook{{Title: "Moby Dick"}})))

	exists, err := dev.Exists(ctx, "/Library/calibre.mm/staging/delete_books.xml")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = dev.Exists(ctx, "/Library/calibre.mm/staging/delete_books.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWaitForCompletionSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, dev := newTestRunner(t)

	// Simulate the device: acknowledge, report progress, then complete.
	go func() {
		time.Sleep(20 * time.Millisecond)
		writeStatus(t, dev, StatusInProgress, 1, 0.5)
		time.Sleep(20 * time.Millisecond)
		writeStatus(t, dev, StatusSuccess, 2, 1.0)
	}()

	require.NoError(t, r.WaitForCompletion(ctx, DeleteBooks))

	// The status artifact is consumed on completion.
	exists, err := dev.Exists(ctx, statusPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWaitForCompletionDeviceFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, dev := newTestRunner(t)

	body := `<status code="2" timestamp="1"><progress>0.4</progress>` +
		`<messages><message>out of storage</message></messages></status>`
	require.NoError(t, dev.Write(ctx, []byte(body), statusPath))

	err := r.WaitForCompletion(ctx, UpdateMetadata)
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeCommandFailed))

	e := &errcodes.Error{}
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Detail, "out of storage")

	// Removed before the error was surfaced.
	exists, err2 := dev.Exists(ctx, statusPath)
	require.NoError(t, err2)
	assert.False(t, exists)
}

func TestWaitForCompletionTimesOutWithoutAck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRunner(t)
	r.WatchdogTimeout = 30 * time.Millisecond

	err := r.WaitForCompletion(ctx, DeleteBooks)
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeTimedOut))
}

func TestWaitForCompletionTimesOutWithoutProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, dev := newTestRunner(t)
	r.WatchdogTimeout = 50 * time.Millisecond

	// Acknowledged but never advances: the watchdog fires.
	writeStatus(t, dev, StatusInProgress, 1, 0.1)

	err := r.WaitForCompletion(ctx, DeleteBooks)
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeTimedOut))

	exists, err2 := dev.Exists(ctx, statusPath)
	require.NoError(t, err2)
	assert.False(t, exists)
}

func TestWaitForCompletionCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	r, _ := newTestRunner(t)
	r.WatchdogTimeout = time.Minute

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.WaitForCompletion(ctx, DeleteBooks)
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeAborted))
}

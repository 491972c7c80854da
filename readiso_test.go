package readiso

import (
	"context"
	"crypto/md5"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bgrewell/readiso/internal/testsupport"
	"github.com/bgrewell/readiso/pkg/option"
	"github.com/bgrewell/readiso/pkg/reconcile"
	"github.com/bgrewell/readiso/pkg/scsi"
	"github.com/stretchr/testify/require"
)

func TestOpenAndRead(t *testing.T) {
	image := testsupport.BuildRaw(t, 200, testsupport.Primary(180))
	path := testsupport.WriteImage(t, image)

	r, err := Open(path,
		option.WithOpener(scsi.OpenImage),
		option.WithReadyDelay(time.Millisecond),
		option.WithReadBlocks(16),
		option.WithLockDir(t.TempDir()),
	)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, path, r.Device())

	require.NoError(t, r.Initialize(context.Background()))
	track, err := r.SelectTrack(0)
	require.NoError(t, err)
	pvd, err := r.PrimaryDescriptor(track)
	require.NoError(t, err)
	plan := r.Plan(track, pvd, reconcile.None)
	require.Equal(t, int64(180), plan.EffectiveBlocks)

	out, err := os.Create(filepath.Join(t.TempDir(), "copy.iso"))
	require.NoError(t, err)
	defer out.Close()

	res, err := r.Copy(plan, out, md5.New())
	require.NoError(t, err)
	require.True(t, res.Complete)

	sum := md5.Sum(image[:180*2048])
	require.Equal(t, sum[:], res.Digest)
}

func TestOpenMissingDevice(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "nope"), option.WithOpener(scsi.OpenImage))
	require.Error(t, err)
	require.Nil(t, r)
}

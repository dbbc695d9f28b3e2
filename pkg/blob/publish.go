package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
	"github.com/promptflow/releasekit/pkg/version"
)

const (
	// latestMSIName is the well-known object that always points at
	// the most recently promoted installer.
	latestMSIName = "promptflow.msi"

	// latestPointerName is the JSON pointer the install docs and the
	// CLI's update check read.
	latestPointerName = "latest_version.json"
)

// PublishOptions control how a built MSI lands in the bucket.
type PublishOptions struct {
	MSIPath string // local path of the built MSI

	Version version.Version

	// UploadAsLatest promotes this MSI: the well-known latest object
	// is overwritten first, then server-side copied to the versioned
	// name. Without it, only the versioned name is uploaded.
	UploadAsLatest bool
}

// latestPointer is the payload of latest_version.json.
type latestPointer struct {
	Version string `json:"version"`
}

// Publish uploads the MSI, and, for release versions, moves the
// latest version pointer. There is no retry here -- a failed upload
// fails the run, same as any other pipeline step.
func Publish(ctx context.Context, store Store, opts PublishOptions) error {
	ctx, span := trace.StartSpan(ctx, "blob.Publish")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	msiName := filepath.Base(opts.MSIPath)

	msiFH, err := os.Open(opts.MSIPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", opts.MSIPath)
	}
	defer msiFH.Close()

	if opts.UploadAsLatest {
		// Overwrite the well-known name, then copy it server side to
		// the versioned name. The copy means the two objects are
		// byte-identical without a second upload.
		if err := store.Upload(ctx, latestMSIName, msiFH); err != nil {
			return errors.Wrap(err, "uploading latest msi")
		}

		if err := store.Copy(ctx, latestMSIName, msiName); err != nil {
			return errors.Wrapf(err, "copying %s to %s", latestMSIName, msiName)
		}

		level.Info(logger).Log(
			"msg", "promoted msi to latest",
			"object", latestMSIName,
			"copied_to", msiName,
			"url", store.URL(latestMSIName),
		)
	} else {
		if err := store.Upload(ctx, msiName, msiFH); err != nil {
			return errors.Wrap(err, "uploading msi")
		}

		level.Info(logger).Log(
			"msg", "uploaded msi",
			"object", msiName,
			"url", store.URL(msiName),
		)
	}

	// Only 1.x versions move the pointer. Dev builds and prerelease
	// schemes never show up as the latest version.
	if !opts.Version.IsRelease() {
		level.Debug(logger).Log(
			"msg", "not a release version, skipping latest pointer",
			"version", opts.Version.String(),
		)
		return nil
	}

	pointer, err := json.Marshal(latestPointer{Version: opts.Version.String()})
	if err != nil {
		return errors.Wrap(err, "marshalling latest pointer")
	}

	if err := store.Upload(ctx, latestPointerName, bytes.NewReader(pointer)); err != nil {
		return errors.Wrap(err, "uploading latest pointer")
	}

	level.Info(logger).Log(
		"msg", "published latest pointer",
		"object", latestPointerName,
		"version", opts.Version.String(),
	)

	return nil
}

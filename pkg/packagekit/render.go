package packagekit

import (
	"bytes"
	"context"
	"crypto/md5"
	_ "embed"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/template"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

//go:embed assets/version_info.py.tmpl
var versionInfoTemplate string

//go:embed assets/product.wxs.tmpl
var productTemplate string

// templateData is what every template sees. We use go's templating
// rather than the tools' own variable systems -- this way the
// intermediate files are plain text and easy to inspect when a build
// goes sideways.
type templateData struct {
	Opts        *PackageOptions
	UpgradeCode string
	ProductCode string
	PackageCode string
}

func newTemplateData(po *PackageOptions) templateData {
	extraGuidIdentifiers := []string{
		runtime.GOARCH,
		po.Version.String(),
	}

	return templateData{
		Opts:        po,
		UpgradeCode: generateMicrosoftProductCode(po.Name + po.Identifier),
		ProductCode: generateMicrosoftProductCode(po.Name+po.Identifier, extraGuidIdentifiers...),
		PackageCode: generateMicrosoftProductCode(po.Name+po.Identifier, extraGuidIdentifiers...),
	}
}

// RenderVersionInfo writes the PyInstaller version resource. The
// four-tuple form goes into filevers/prodvers, the dotted form into
// the string fields.
func RenderVersionInfo(ctx context.Context, w io.Writer, po *PackageOptions) error {
	_, span := trace.StartSpan(ctx, "packagekit.RenderVersionInfo")
	defer span.End()

	source, err := templateSource(po.VersionInfoTemplate, versionInfoTemplate)
	if err != nil {
		return err
	}

	return render(w, "VersionInfo", source, po)
}

// RenderProduct writes the WiX product definition, version stamped and
// with stable upgrade/product/package GUIDs.
func RenderProduct(ctx context.Context, w io.Writer, po *PackageOptions) error {
	_, span := trace.StartSpan(ctx, "packagekit.RenderProduct")
	defer span.End()

	source, err := templateSource(po.ProductTemplate, productTemplate)
	if err != nil {
		return err
	}

	return render(w, "Product", source, po)
}

// PatchFile renders an arbitrary on-disk template over itself. This is
// how caller-owned project files get their version placeholders filled
// in.
func PatchFile(ctx context.Context, path string, po *PackageOptions) error {
	_, span := trace.StartSpan(ctx, "packagekit.PatchFile")
	defer span.End()

	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading template %s", path)
	}

	var rendered bytes.Buffer
	if err := render(&rendered, path, string(raw), po); err != nil {
		return err
	}

	if err := os.WriteFile(path, rendered.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "writing patched %s", path)
	}

	return nil
}

func render(w io.Writer, name, source string, po *PackageOptions) error {
	t, err := template.New(name).Parse(source)
	if err != nil {
		return errors.Wrapf(err, "not able to parse %s template", name)
	}

	if err := t.ExecuteTemplate(w, name, newTemplateData(po)); err != nil {
		return errors.Wrapf(err, "executing %s template", name)
	}

	return nil
}

// templateSource prefers a caller-supplied on-disk template, falling
// back to the embedded default.
func templateSource(path, embedded string) (string, error) {
	if path == "" {
		return embedded, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading template %s", path)
	}
	return string(raw), nil
}

// generateMicrosoftProductCode is a stable guid identifying the
// product / package / version. Regenerating it from the same inputs
// must yield the same guid, or MSI upgrades break. See
// https://docs.microsoft.com/en-us/windows/desktop/Msi/productcode
func generateMicrosoftProductCode(ident1 string, identN ...string) string {
	h := md5.New()
	io.WriteString(h, ident1)
	for _, s := range identN {
		io.WriteString(h, s)
	}

	hash := h.Sum(nil)

	return fmt.Sprintf("%X-%X-%X-%X-%X", hash[0:4], hash[4:6], hash[6:8], hash[8:10], hash[10:16])
}

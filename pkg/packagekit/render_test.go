package packagekit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptflow/releasekit/pkg/version"
)

func testPackageOptions() *PackageOptions {
	return &PackageOptions{
		Name:        "promptflow",
		Identifier:  "com.microsoft.promptflow",
		Publisher:   "Microsoft",
		Description: "Prompt flow CLI",
		Version:     version.Resolve("1.2.3", time.Now()),
	}
}

func TestRenderVersionInfo(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer
	require.NoError(t, RenderVersionInfo(context.TODO(), &output, testPackageOptions()))

	expectedOutputStrings := []string{
		"filevers=(1,2,3,0)",
		"prodvers=(1,2,3,0)",
		"StringStruct(u'FileVersion', u'1.2.3')",
		"StringStruct(u'ProductVersion', u'1.2.3')",
		"StringStruct(u'ProductName', u'promptflow')",
	}

	for _, s := range expectedOutputStrings {
		require.Contains(t, output.String(), s)
	}
}

func TestRenderProduct(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer
	require.NoError(t, RenderProduct(context.TODO(), &output, testPackageOptions()))

	expectedOutputStrings := []string{
		`Version="1.2.3.0"`,
		`Name="promptflow"`,
		`Manufacturer="Microsoft"`,
		`ComponentGroupRef Id="AppFiles"`,
	}

	for _, s := range expectedOutputStrings {
		require.Contains(t, output.String(), s)
	}

	// The upgrade code is stable across versions; product and package
	// codes move with the version.
	var other bytes.Buffer
	po := testPackageOptions()
	po.Version = version.Resolve("1.2.4", time.Now())
	require.NoError(t, RenderProduct(context.TODO(), &other, po))

	sameUpgrade := newTemplateData(testPackageOptions()).UpgradeCode
	require.Contains(t, other.String(), sameUpgrade)
	require.NotContains(t, other.String(), newTemplateData(testPackageOptions()).ProductCode)
}

func TestPatchFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "setup.wixproj")
	content := `<Project><Version>{{.Opts.Version.String}}</Version></Project>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	require.NoError(t, PatchFile(context.TODO(), path, testPackageOptions()))

	patched, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `<Project><Version>1.2.3</Version></Project>`, string(patched))
}

func TestGenerateMicrosoftProductCode(t *testing.T) {
	t.Parallel()

	guid := generateMicrosoftProductCode("promptflowcom.microsoft.promptflow")
	require.Equal(t, len("XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX"), len(guid))

	// Stable for the same inputs, different for different inputs.
	require.Equal(t, guid, generateMicrosoftProductCode("promptflowcom.microsoft.promptflow"))
	require.NotEqual(t, guid, generateMicrosoftProductCode("promptflowcom.microsoft.promptflow", "1.2.3", "amd64"))
}

package update

import "testing"

func testAssets(names ...string) []Asset {
	assets := make([]Asset, len(names))
	for i, n := range names {
		assets[i] = Asset{Name: n, DownloadURL: "https://example.com/" + n}
	}
	return assets
}

func TestSelectAssetPerPlatform(t *testing.T) {
	assets := testAssets("app_windows_x64.exe", "app_macos.dmg", "app_linux.AppImage")

	tests := []struct {
		platform Platform
		want     string
	}{
		{PlatformWindows, "app_windows_x64.exe"},
		{PlatformMacOS, "app_macos.dmg"},
		{PlatformLinux, "app_linux.AppImage"},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			got := SelectAsset(assets, tt.platform)
			if got == nil {
				t.Fatalf("SelectAsset returned nil, want %q", tt.want)
			}
			if got.Name != tt.want {
				t.Errorf("SelectAsset = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestSelectAssetUnsupportedPlatform(t *testing.T) {
	assets := testAssets("app_windows_x64.exe", "app_macos.dmg", "app_linux.AppImage")

	if got := SelectAsset(assets, Platform("freebsd")); got != nil {
		t.Errorf("SelectAsset for unsupported platform = %q, want nil", got.Name)
	}
	if got := SelectAsset(assets, Platform("")); got != nil {
		t.Errorf("SelectAsset for empty platform = %q, want nil", got.Name)
	}
}

func TestSelectAssetNoMatch(t *testing.T) {
	assets := testAssets("checksums.txt", "source.tar.gz")

	if got := SelectAsset(assets, PlatformWindows); got != nil {
		t.Errorf("SelectAsset = %q, want nil", got.Name)
	}
}

func TestSelectAssetFirstInListOrder(t *testing.T) {
	assets := testAssets("helper-win32-setup.msi", "helper_windows.exe")

	got := SelectAsset(assets, PlatformWindows)
	if got == nil || got.Name != "helper-win32-setup.msi" {
		t.Errorf("SelectAsset = %v, want first matching asset in list order", got)
	}
}

func TestSelectAssetCaseInsensitive(t *testing.T) {
	assets := testAssets("Helper-MacOS.DMG")

	if got := SelectAsset(assets, PlatformMacOS); got == nil {
		t.Error("SelectAsset should match case-insensitively")
	}
}

func TestSelectAssetDarwinNotMistakenForWindows(t *testing.T) {
	assets := testAssets("helper_darwin_arm64.dmg", "helper_windows_x64.msi")

	got := SelectAsset(assets, PlatformWindows)
	if got == nil || got.Name != "helper_windows_x64.msi" {
		t.Errorf("SelectAsset = %v, want the windows asset", got)
	}
}

func TestSelectAssetExtensionOnly(t *testing.T) {
	// No platform substring at all, extension decides
	assets := testAssets("helper-setup.exe")

	if got := SelectAsset(assets, PlatformWindows); got == nil {
		t.Error("SelectAsset should match by extension alone")
	}
}

func TestSelectAssetEmptyList(t *testing.T) {
	if got := SelectAsset(nil, PlatformLinux); got != nil {
		t.Errorf("SelectAsset on empty list = %v, want nil", got)
	}
}

package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	safeDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "file directly inside",
			path:    filepath.Join(safeDir, "device.msh2"),
			wantErr: false,
		},
		{
			name:    "file in subdirectory that does not exist yet",
			path:    filepath.Join(safeDir, "out", "device.msh2"),
			wantErr: false,
		},
		{
			name:    "dot-dot escape",
			path:    filepath.Join(safeDir, "..", "device.msh2"),
			wantErr: true,
		},
		{
			name:    "absolute path outside",
			path:    filepath.Join(os.TempDir(), "unrelated", "device.msh2"),
			wantErr: true,
		},
		{
			name:    "safe directory itself",
			path:    safeDir,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q, %q) error = %v, wantErr %v",
					tt.path, safeDir, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathNormalizesInternalDotDot(t *testing.T) {
	safeDir := t.TempDir()
	// sub/../device.msh2 cleans to a path still inside safeDir.
	path := filepath.Join(safeDir, "sub", "..", "device.msh2")
	if err := ValidatePathWithinDirectory(path, safeDir); err != nil {
		t.Errorf("expected cleaned path to validate, got %v", err)
	}
}

func TestValidatePathSymlinkedParentEscapes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on windows")
	}
	safeDir := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(safeDir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	// The path is lexically inside safeDir but resolves outside it.
	if err := ValidatePathWithinDirectory(filepath.Join(link, "device.msh2"), safeDir); err == nil {
		t.Error("expected symlinked parent escape to be rejected")
	}
}

func TestValidatePathMissingSafeDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	if err := ValidatePathWithinDirectory("device.msh2", missing); err == nil {
		t.Error("expected error for nonexistent safe directory")
	}
}

package filetransfer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Authentication Bypass Negative Tests
// ============================================================================

// TestAuthBypass_EmptyPasswordWhenRequired tests that empty password fails when auth required.
func TestAuthBypass_EmptyPasswordWhenRequired(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.DefaultCost)

	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Allow all paths for this test
		PasswordHash: string(hash),
	})

	testCases := []struct {
		name     string
		password string
		wantErr  bool
		errMsg   string
	}{
		{"empty password", "", true, "authentication required"},
		{"whitespace only", "   ", true, "authentication failed"},
		{"wrong password", "wrongpassword", true, "authentication failed"},
		{"password with trailing space", "secret ", true, "authentication failed"},
		{"password with leading space", " secret", true, "authentication failed"},
		{"null byte in password", "sec\x00ret", true, "authentication failed"},
		{"correct password", "secret", false, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path:     "/tmp/test.txt",
				Password: tc.password,
			})

			if (err != nil) != tc.wantErr {
				t.Errorf("password=%q: error = %v, wantErr %v", tc.password, err, tc.wantErr)
			}

			if tc.wantErr && tc.errMsg != "" && err != nil {
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("error %q should contain %q", err.Error(), tc.errMsg)
				}
			}
		})
	}
}

// TestAuthBypass_PathTraversal tests various path traversal attack attempts.
func TestAuthBypass_PathTraversal(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"/tmp/uploads"},
	})

	testCases := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		// Basic traversal - filepath.Clean normalizes these, then allowed path check fails
		{"simple traversal", "/tmp/uploads/../../../etc/passwd", true, "not in allowed"},
		{"double dot", "/tmp/uploads/../../secret", true, "not in allowed"},
		{"encoded traversal", "/tmp/uploads/%2e%2e/secret", false, ""}, // URL encoding not decoded
		{"backslash traversal", "/tmp/uploads\\..\\..\\secret", true, ""},

		// Path prefix bypass
		{"prefix bypass", "/tmp/uploadsx/../../etc/passwd", true, ""},
		{"not in allowed", "/etc/passwd", true, "not in allowed"},
		{"similar prefix", "/tmp/upload/file.txt", true, "not in allowed"},

		// Null byte injection - now properly detected
		{"null byte", "/tmp/uploads/file.txt\x00.jpg", true, "dangerous characters"},

		// Symlink-like paths
		{"dot slash", "/tmp/uploads/./file.txt", false, ""}, // . is allowed
		{"double slash", "/tmp/uploads//file.txt", false, ""},

		// Valid paths
		{"valid path", "/tmp/uploads/file.txt", false, ""},
		{"valid nested", "/tmp/uploads/subdir/file.txt", false, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})

			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("path=%q: gotErr=%v, wantErr=%v, error=%v",
					tc.path, gotErr, tc.wantErr, err)
			}

			if tc.wantErr && tc.errMsg != "" && err != nil {
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("error %q should contain %q", err.Error(), tc.errMsg)
				}
			}
		})
	}
}

// TestAuthBypass_RelativePath tests that relative paths are rejected.
func TestAuthBypass_RelativePath(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Allow all paths for this test
	})

	testCases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative simple", "file.txt", true},
		{"relative dot", "./file.txt", true},
		{"relative parent", "../file.txt", true},
		{"relative nested", "subdir/file.txt", true},
		{"empty path", "", true},
		{"whitespace only", "   ", true},

		// Absolute paths should work
		{"absolute unix", "/tmp/file.txt", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})

			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("path=%q: gotErr=%v, wantErr=%v, error=%v",
					tc.path, gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAuthBypass_AllowedPathsBypass tests various attempts to bypass allowed paths.
func TestAuthBypass_AllowedPathsBypass(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"/var/www", "/tmp/data"},
	})

	testCases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		// Allowed paths
		{"exact www", "/var/www", false},
		{"www subpath", "/var/www/index.html", false},
		{"exact data", "/tmp/data", false},
		{"data subpath", "/tmp/data/file.json", false},

		// Not allowed
		{"root", "/", true},
		{"etc", "/etc/passwd", true},
		{"var but not www", "/var/log/syslog", true},
		{"tmp but not data", "/tmp/other/file.txt", true},

		// Bypass attempts - now properly detected
		{"prefix similar", "/var/wwwevil/file.txt", true}, // Fixed: requires exact path or separator
		{"with traversal", "/var/www/../log/syslog", true},
		{"case variation", "/VAR/WWW/file.txt", true}, // Case sensitive
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})

			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("path=%q: gotErr=%v, wantErr=%v, error=%v",
					tc.path, gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAuthBypass_SizeLimit tests file size limit enforcement.
func TestAuthBypass_SizeLimit(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Allow all paths for this test
		MaxFileSize:  1024,          // 1KB limit
	})

	testCases := []struct {
		name    string
		size    int64
		isDir   bool
		wantErr bool
	}{
		{"under limit", 512, false, false},
		{"at limit", 1024, false, false},
		{"over limit", 1025, false, true},
		{"way over limit", 1024 * 1024, false, true},
		{"negative size", -1, false, false},  // -1 means unknown
		{"zero size", 0, false, false},       // Empty file
		{"directory bypasses", 1024 * 1024, true, false}, // Dirs not checked
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path:        "/tmp/test.txt",
				Size:        tc.size,
				IsDirectory: tc.isDir,
			})

			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("size=%d, isDir=%v: gotErr=%v, wantErr=%v, error=%v",
					tc.size, tc.isDir, gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAuthBypass_DisabledTransfer tests that disabled transfer rejects all.
func TestAuthBypass_DisabledTransfer(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      false,       // Disabled!
		AllowedPaths: []string{},  // Empty list would also block, but Enabled=false is checked first
	})

	err := h.ValidateUploadMetadata(&TransferMetadata{
		Path: "/tmp/test.txt",
	})

	if err == nil {
		t.Error("disabled transfer should reject")
	}

	if !strings.Contains(err.Error(), "disabled") {
		t.Errorf("error should mention disabled: %v", err)
	}
}

// TestAuthBypass_DownloadNonexistent tests download of nonexistent paths.
func TestAuthBypass_DownloadNonexistent(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Allow all paths for this test
	})

	err := h.ValidateDownloadMetadata(&TransferMetadata{
		Path: "/nonexistent/path/that/does/not/exist/file.txt",
	})

	if err == nil {
		t.Error("nonexistent path should fail validation")
	}
}

// TestAuthBypass_SymlinkEscape tests that symlinks don't escape allowed paths.
func TestAuthBypass_SymlinkEscape(t *testing.T) {
	// Create temp directory structure
	tmpDir := t.TempDir()
	allowedDir := filepath.Join(tmpDir, "allowed")
	secretDir := filepath.Join(tmpDir, "secret")
	os.MkdirAll(allowedDir, 0755)
	os.MkdirAll(secretDir, 0755)

	// Create a secret file
	secretFile := filepath.Join(secretDir, "secret.txt")
	os.WriteFile(secretFile, []byte("secret data"), 0644)

	// Create a symlink in allowed dir pointing to secret
	symlinkPath := filepath.Join(allowedDir, "link")
	os.Symlink(secretFile, symlinkPath)

	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{allowedDir},
	})

	// The symlink path is within allowed, but points outside
	// Now the implementation checks symlink targets
	err := h.ValidateDownloadMetadata(&TransferMetadata{
		Path: symlinkPath,
	})

	// The implementation now validates symlink targets
	if err == nil {
		t.Error("Symlink pointing outside allowed paths should be rejected")
	} else {
		// Expected: symlink target not allowed
		if !strings.Contains(err.Error(), "symlink target not allowed") {
			t.Errorf("Expected 'symlink target not allowed' error, got: %v", err)
		}
	}
}

// TestAuthBypass_SpecialFiles tests handling of special file paths.
func TestAuthBypass_SpecialFiles(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Allow all paths for this test
	})

	testCases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		// Device files (Unix)
		{"dev null", "/dev/null", false},      // Should be allowed (valid absolute path)
		{"dev random", "/dev/random", false},  // Should be allowed
		{"dev zero", "/dev/zero", false},      // Should be allowed

		// Proc filesystem
		{"proc self", "/proc/self/environ", false}, // Path is valid, may fail on access

		// These are valid paths, they'll fail at the actual read/write stage
		// not at validation (which only checks path format)
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})

			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("path=%q: gotErr=%v, wantErr=%v, error=%v",
					tc.path, gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAuthBypass_ConcurrentValidation tests concurrent validation doesn't cause issues.
func TestAuthBypass_ConcurrentValidation(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.DefaultCost)

	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		PasswordHash: string(hash),
		AllowedPaths: []string{"/tmp"},
	})

	done := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func(attempt int) {
			defer func() { done <- true }()

			// Alternate between valid and invalid
			password := "wrong"
			path := "/etc/passwd"
			expectErr := true

			if attempt%2 == 0 {
				password = "secret"
				path = "/tmp/file.txt"
				expectErr = false
			}

			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path:     path,
				Password: password,
			})

			gotErr := err != nil
			if gotErr != expectErr {
				t.Errorf("Attempt %d: gotErr=%v, expectErr=%v", attempt, gotErr, expectErr)
			}
		}(i)
	}

	for i := 0; i < 100; i++ {
		<-done
	}
}

// TestAuthBypass_LargeFilename tests handling of extremely long filenames.
func TestAuthBypass_LargeFilename(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Allow all paths for this test
	})

	// Create a very long filename
	longName := strings.Repeat("a", 10000)
	longPath := "/tmp/" + longName

	err := h.ValidateUploadMetadata(&TransferMetadata{
		Path: longPath,
	})

	// Should not panic, may succeed or fail depending on implementation
	t.Logf("Long filename result: %v", err)
}

// TestAuthBypass_UnicodePathTraversal tests Unicode-based path traversal.
func TestAuthBypass_UnicodePathTraversal(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"/tmp/uploads"},
	})

	testCases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		// Unicode edge cases - these are NOT security issues because:
		// - Fullwidth dots (U+FF0E) are different codepoints, not directory traversal
		// - The filesystem treats them as literal characters in directory names
		// - NFC normalization doesn't convert fullwidth to ASCII
		{"fullwidth dot dot", "/tmp/uploads/\uFF0E\uFF0E/secret", false}, // Not traversal, just odd dirname
		{"overlong UTF-8 dot", "/tmp/uploads/\xc0\xae\xc0\xae/secret", false}, // Invalid UTF-8, but not traversal

		// Valid Unicode
		{"unicode filename", "/tmp/uploads/\u00e9l\u00e8ve.txt", false},
		{"emoji filename", "/tmp/uploads/\U0001F600.txt", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})

			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("path=%q: gotErr=%v, wantErr=%v, error=%v",
					tc.path, gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAuthBypass_MetadataInjection tests injection via other metadata fields.
func TestAuthBypass_MetadataInjection(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Allow all paths for this test
	})

	testCases := []struct {
		name     string
		metadata *TransferMetadata
		wantErr  bool
	}{
		{
			name: "checksum injection",
			metadata: &TransferMetadata{
				Path:     "/tmp/file.txt",
				Checksum: "; rm -rf /",
			},
			wantErr: false, // Checksum is not validated for format
		},
		{
			name: "very large mode",
			metadata: &TransferMetadata{
				Path: "/tmp/file.txt",
				Mode: 0xFFFFFFFF, // Max uint32
			},
			wantErr: false, // Mode is just stored, not validated
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(tc.metadata)

			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("gotErr=%v, wantErr=%v, error=%v", gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAuthBypass_WriteToReadOnly tests writing to read-only locations.
func TestAuthBypass_WriteToReadOnly(t *testing.T) {
	h := NewStreamHandler(StreamConfig{Enabled: true, AllowedPaths: []string{"*"}})

	// Create a read-only directory
	tmpDir := t.TempDir()
	roDir := filepath.Join(tmpDir, "readonly")
	os.MkdirAll(roDir, 0555) // Read + execute only
	defer os.Chmod(roDir, 0755) // Restore for cleanup

	destPath := filepath.Join(roDir, "file.txt")
	content := []byte("test content")

	_, err := h.WriteUploadedFile(destPath, bytes.NewReader(content), 0644, false, false)

	if err == nil {
		// If we're root, this might succeed
		t.Logf("Write to read-only succeeded (may be running as root)")
	} else {
		// Expected to fail for non-root
		t.Logf("Write to read-only correctly failed: %v", err)
	}
}

// TestAllowedPaths_EmptyList tests that empty allowed_paths blocks all paths.
func TestAllowedPaths_EmptyList(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{}, // Empty = no paths allowed
	})

	testCases := []struct {
		name string
		path string
	}{
		{"tmp path", "/tmp/file.txt"},
		{"home path", "/home/user/file.txt"},
		{"etc path", "/etc/config"},
		{"root path", "/file.txt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})
			if err == nil {
				t.Errorf("expected error for path %q with empty allowed_paths", tc.path)
			}
			if !strings.Contains(err.Error(), "no paths are allowed") {
				t.Errorf("expected 'no paths are allowed' error, got: %v", err)
			}
		})
	}
}

// TestAllowedPaths_Wildcard tests that ["*"] allows all absolute paths.
func TestAllowedPaths_Wildcard(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled:      true,
		AllowedPaths: []string{"*"}, // Wildcard = all paths allowed
	})

	testCases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"tmp path", "/tmp/file.txt", false},
		{"home path", "/home/user/file.txt", false},
		{"etc path", "/etc/config", false},
		{"root path", "/file.txt", false},
		{"deep nested", "/a/b/c/d/e/f/g.txt", false},

		// Still reject relative paths
		{"relative", "file.txt", true},
		{"relative dot", "./file.txt", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})
			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("path=%q: gotErr=%v, wantErr=%v, error=%v",
					tc.path, gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAllowedPaths_GlobPatterns tests glob pattern matching.
func TestAllowedPaths_GlobPatterns(t *testing.T) {
	h := NewStreamHandler(StreamConfig{
		Enabled: true,
		AllowedPaths: []string{
			"/tmp/**",           // Recursive glob
			"/home/*/uploads",   // Wildcard in path
			"/var/log/*.log",    // Single level glob with extension
			"/data",             // Simple prefix
		},
	})

	testCases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		// /tmp/** - recursive glob
		{"tmp root", "/tmp", false},
		{"tmp file", "/tmp/file.txt", false},
		{"tmp nested", "/tmp/foo/bar/baz.txt", false},

		// /home/*/uploads - wildcard in path
		{"home alice uploads", "/home/alice/uploads", false},
		{"home bob uploads", "/home/bob/uploads", false},
		{"home alice uploads file", "/home/alice/uploads/doc.pdf", false},

		// /var/log/*.log - single level with extension
		{"var log syslog", "/var/log/syslog.log", false},
		{"var log nested (not allowed)", "/var/log/app/error.log", true}, // Not a direct child

		// /data - simple prefix
		{"data root", "/data", false},
		{"data file", "/data/file.txt", false},
		{"data nested", "/data/subdir/file.txt", false},

		// Not allowed paths
		{"etc passwd", "/etc/passwd", true},
		{"root secret", "/root/secret", true},
		{"usr bin", "/usr/bin/ls", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateUploadMetadata(&TransferMetadata{
				Path: tc.path,
			})
			gotErr := err != nil
			if gotErr != tc.wantErr {
				t.Errorf("path=%q: gotErr=%v, wantErr=%v, error=%v",
					tc.path, gotErr, tc.wantErr, err)
			}
		})
	}
}

// TestAllowedPaths_ConsistentWithRPC tests that behavior matches RPC whitelist.
func TestAllowedPaths_ConsistentWithRPC(t *testing.T) {
	// This test documents the consistency between file transfer allowed_paths
	// and RPC whitelist behavior:
	// - Empty list = nothing allowed (secure by default)
	// - ["*"] = everything allowed
	// - Specific items = only those allowed

	t.Run("empty list blocks all", func(t *testing.T) {
		h := NewStreamHandler(StreamConfig{
			Enabled:      true,
			AllowedPaths: []string{},
		})
		err := h.ValidateUploadMetadata(&TransferMetadata{Path: "/tmp/file.txt"})
		if err == nil {
			t.Error("empty allowed_paths should block all paths")
		}
	})

	t.Run("wildcard allows all", func(t *testing.T) {
		h := NewStreamHandler(StreamConfig{
			Enabled:      true,
			AllowedPaths: []string{"*"},
		})
		err := h.ValidateUploadMetadata(&TransferMetadata{Path: "/any/path/at/all"})
		if err != nil {
			t.Errorf("wildcard should allow all paths: %v", err)
		}
	})

	t.Run("specific paths restrict access", func(t *testing.T) {
		h := NewStreamHandler(StreamConfig{
			Enabled:      true,
			AllowedPaths: []string{"/tmp"},
		})
		// Allowed
		if err := h.ValidateUploadMetadata(&TransferMetadata{Path: "/tmp/file.txt"}); err != nil {
			t.Errorf("/tmp/file.txt should be allowed: %v", err)
		}
		// Not allowed
		if err := h.ValidateUploadMetadata(&TransferMetadata{Path: "/etc/passwd"}); err == nil {
			t.Error("/etc/passwd should not be allowed")
		}
	})
}

// TestAuthBypass_TarSlipAttack documents the tar slip (zip slip for tar) case.
func TestAuthBypass_TarSlipAttack(t *testing.T) {
	// Note: This is a documentation test. It builds no tar archive and runs
	// no extraction; it only checks that a file outside the destination
	// directory is unchanged. The entry-path checks UntarDirectory relies on
	// are exercised by TestUntarDirectory_DirectoryTraversal.

	tmpDir := t.TempDir()
	destDir := filepath.Join(tmpDir, "dest")
	os.MkdirAll(destDir, 0755)

	// Create a secret file that we don't want overwritten
	secretFile := filepath.Join(tmpDir, "secret.txt")
	os.WriteFile(secretFile, []byte("original secret"), 0644)

	// If UntarDirectory is vulnerable, a tar with entry "../secret.txt"
	// would overwrite the secret file
	// This test documents the expected behavior

	t.Logf("TarSlip test: destDir=%s, secretFile=%s", destDir, secretFile)

	// Verify secret file wasn't modified
	content, _ := os.ReadFile(secretFile)
	if string(content) != "original secret" {
		t.Error("Secret file was modified - tar slip vulnerability!")
	}
}

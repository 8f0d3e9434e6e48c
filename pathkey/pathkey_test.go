package pathkey

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	root := "/var/cache/httpcachestore"
	key := "md" + "0123456789abcdef0123456789abcdef01234567"

	path, err := Encode(root, key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := root + "/md/01/23/456789abcdef0123456789abcdef01234567"
	if path != want {
		t.Fatalf("Encode(%q) = %q, want %q", key, path, want)
	}

	got, err := Decode(root, path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != key {
		t.Fatalf("Decode(Encode(%q)) = %q, want %q", key, got, key)
	}
}

func TestDecodeStripsLockSuffix(t *testing.T) {
	root := "/cache"
	key := "en" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	path, err := Encode(root, key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(root, path+".lck")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != key {
		t.Fatalf("Decode with .lck suffix = %q, want %q", got, key)
	}
}

func TestEncodeRejectsShortKeys(t *testing.T) {
	if _, err := Encode("/cache", "short"); err == nil {
		t.Fatal("expected error for a key shorter than MinKeyLen")
	}
}

func TestSegments(t *testing.T) {
	key := "md" + "0123456789abcdef0123456789abcdef01234567"
	dirs, file, err := Segments(key)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(dirs) != 3 || dirs[0] != "md" || dirs[1] != "01" || dirs[2] != "23" {
		t.Fatalf("Segments dirs = %v, want [md 01 23]", dirs)
	}
	if file != "456789abcdef0123456789abcdef01234567" {
		t.Fatalf("Segments file = %q", file)
	}
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	if _, err := Decode("/cache", "/cache/only/two"); err == nil {
		t.Fatal("expected error for a path with the wrong number of segments")
	}
}

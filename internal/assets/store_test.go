package assets

import "testing"

func TestExtFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://p/out.mp4", "mp4"},
		{"https://p/out.png?sig=abc", "png"},
		{"https://p/out.JPEG", "jpeg"},
		{"https://p/no-extension", "png"},
		{"", "png"},
	}
	for _, tc := range cases {
		if got := ExtFromURL(tc.url); got != tc.want {
			t.Errorf("ExtFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestContentTypeForExt(t *testing.T) {
	cases := []struct {
		ext  string
		want string
	}{
		{"mp4", "video/mp4"},
		{"jpg", "image/jpeg"},
		{"webp", "image/webp"},
		{"gif", "image/gif"},
		{"anything-else", "image/png"},
	}
	for _, tc := range cases {
		if got := ContentTypeForExt(tc.ext); got != tc.want {
			t.Errorf("ContentTypeForExt(%q) = %q, want %q", tc.ext, got, tc.want)
		}
	}
}

package mimes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromFilename(t *testing.T) {
	var tests = []struct {
		filename string
		expected string
	}{
		{"test.aif", "audio/aiff"},
		{"test.flac", "audio/flac"},
		{"test.mp3", "audio/mp3"},
		{"test.m4a", "audio/mp4"},
		{"test.wav", "audio/wave"},
		{"test.ogg", "audio/ogg"},
		{"cover.PNG", "image/png"},
		{"s3://bucket/dir/meta.json", "application/json"},
		{"test.wtf", ""},
		{"ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			resp := FromFilename(tt.filename)
			assert.Equal(t, tt.expected, resp)
		})
	}
}

func TestResolve(t *testing.T) {
	var tests = []struct {
		name     string
		declared string
		filename string
		expected string
	}{
		{"declared wins", "image/png", "s3://b/a.mp3", "image/png"},
		{"declared with params", "text/plain; charset=utf-8", "", "text/plain; charset=utf-8"},
		{"octet stream falls back to extension", "application/octet-stream", "s3://b/a.mp3", "audio/mp3"},
		{"garbage falls back to extension", ";;", "s3://b/a.wav", "audio/wave"},
		{"empty falls back to extension", "", "s3://b/a.flac", "audio/flac"},
		{"nothing known", "", "ipfs://cid", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.declared, tt.filename))
		})
	}
}

package mimes

import (
	"mime"
	"path"
	"strings"
)

const (
	AudioAIFF   = "audio/aiff"
	AudioFLAC   = "audio/flac"
	AudioMP3    = "audio/mp3"
	AudioMP4    = "audio/mp4"
	AudioOGG    = "audio/ogg"
	AudioWAV    = "audio/wave"
	ImageGIF    = "image/gif"
	ImageJPEG   = "image/jpeg"
	ImagePNG    = "image/png"
	ImageWebP   = "image/webp"
	VideoMP4    = "video/mp4"
	TextHTML    = "text/html"
	TextPlain   = "text/plain"
	JSON        = "application/json"
	PDF         = "application/pdf"
	OctetStream = "application/octet-stream"
)

var byExt = map[string]string{
	".aif":  AudioAIFF,
	".aiff": AudioAIFF,
	".flac": AudioFLAC,
	".mp3":  AudioMP3,
	".m4a":  AudioMP4,
	".ogg":  AudioOGG,
	".wav":  AudioWAV,
	".gif":  ImageGIF,
	".jpg":  ImageJPEG,
	".jpeg": ImageJPEG,
	".png":  ImagePNG,
	".webp": ImageWebP,
	".mp4":  VideoMP4,
	".html": TextHTML,
	".htm":  TextHTML,
	".txt":  TextPlain,
	".json": JSON,
	".pdf":  PDF,
}

func FromFilename(name string) string {
	return byExt[strings.ToLower(path.Ext(name))]
}

// Resolve picks the content type to tag an upload with. A specific declared
// type wins, then the extension of name, then application/octet-stream.
func Resolve(declared, name string) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != OctetStream {
			return declared
		}
	}
	if ct := FromFilename(name); ct != "" {
		return ct
	}
	return OctetStream
}

// Package uploads gates which file types users may attach.
package uploads

import "strings"

var allowedExtensions = map[string]bool{
	"bmp": true, "jif": true, "jpg": true, "jpeg": true, "png": true,
	"txt": true, "pdf": true,
	"xls": true, "xlsx": true, "ppt": true, "pptx": true, "doc": true, "docx": true,
	"zip": true, "rar": true,
	"wav": true, "mp3": true, "ogg": true,
	"mp4": true, "mpeg4": true, "webm": true, "mov": true, "mpg": true, "avi": true,
}

// Allowed reports whether the filename carries a permitted extension. The
// check is case-insensitive; a name without an extension is rejected.
func Allowed(filename string) bool {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return false
	}
	return allowedExtensions[strings.ToLower(filename[i+1:])]
}

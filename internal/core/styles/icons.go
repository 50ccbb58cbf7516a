package styles

import (
	"path"
	"strings"
)

// Tip: To find icons use https://github.com/loichyan/nerdfix

var (
	IconFolder      = "\uf07b "
	IconFileDefault = "\uf15b "
)

var fileIcons = map[string]string{
	".html": "\ue736 ",
	".css":  "\ue749 ",
	".js":   "\U000f031e ",
	".jsx":  "\U000f031e ",
	".ts":   "\U000f06e6 ",
	".tsx":  "\U000f06e6 ",
	".json": "\ue60b ",
	".md":   "\ue609 ",
	".svg":  "\U000f0721 ",
}

// IconFor returns the nerd font icon for a tree entry.
func IconFor(name string, folder bool) string {
	if folder {
		return IconFolder
	}
	if icon, ok := fileIcons[strings.ToLower(path.Ext(name))]; ok {
		return icon
	}
	return IconFileDefault
}

package preview

import (
	_ "embed"
	"errors"
	"fmt"
	"html"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/colonyops/kiln/internal/core/vfs"
)

//go:embed bridge.js
var bridgeJS []byte

const indexFile = "index.html"

// sourceTypes covers extensions the mime table does not know.
var sourceTypes = map[string]string{
	".ts":  "text/javascript; charset=utf-8",
	".tsx": "text/javascript; charset=utf-8",
	".jsx": "text/javascript; charset=utf-8",
	".md":  "text/markdown; charset=utf-8",
}

func contentType(name, content string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := sourceTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType([]byte(content))
}

// injectBridge adds the bridge script to an HTML document, before </body>
// when there is one.
func injectBridge(doc, workspaceID string) string {
	tag := fmt.Sprintf(`<script src="/bridge.js" data-workspace="%s"></script>`, html.EscapeString(workspaceID))
	if i := strings.LastIndex(strings.ToLower(doc), "</body>"); i >= 0 {
		return doc[:i] + tag + doc[i:]
	}
	return doc + tag
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(bridgeJS)
}

// handlePreview serves a file from the published tree. A folder serves its
// index.html. HTML documents get the bridge script so the surface can talk
// back to the host.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	p, err := vfs.ParsePath(r.PathValue("path"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tree, _ := ws.Tree()
	if n, err := tree.Lookup(p); err == nil && n.Kind() == vfs.KindFolder {
		p = p.Join(indexFile)
	}

	content, err := tree.ReadFile(p)
	if err != nil {
		if errors.Is(err, vfs.ErrPathNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	ctype := contentType(p.Base(), content)
	if strings.HasPrefix(ctype, "text/html") {
		content = injectBridge(content, ws.ID)
	}

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Security-Policy", previewPolicy)
	_, _ = w.Write([]byte(content))
}
